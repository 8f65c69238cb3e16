package controller

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatForecast(start time.Time) []types.ForecastSample {
	forecast := make([]types.ForecastSample, 24)
	for i := range forecast {
		forecast[i] = types.ForecastSample{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return forecast
}

func TestSchedule(t *testing.T) {
	c := NewController()
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Single Hour Partially Closes Deficit", func(t *testing.T) {
		forecast := flatForecast(start)
		forecast[10].PVProdWH = 300

		// 2.0 kWh battery at 1.5 kWh
		res := c.ScheduleResult(ctx, forecast, 2.0-1.5)
		require.Len(t, res.Entries, 24)
		for i, e := range res.Entries {
			assert.Equal(t, forecast[i].Timestamp, e.Timestamp)
			if i == 10 {
				assert.Equal(t, 300.0, e.BatteryInputWH)
				assert.Equal(t, types.SuggestedStateChargeBattery, e.SuggestedState)
				continue
			}
			assert.Equal(t, 0.0, e.BatteryInputWH)
			assert.Equal(t, types.SuggestedStateUseGrid, e.SuggestedState, "hour %d", i)
		}
		assert.InDelta(t, 200, res.RemainingWH, 1e-9)
	})

	t.Run("Leftover Surplus -> Mixed", func(t *testing.T) {
		forecast := flatForecast(start)
		forecast[12].PVProdWH = 800
		forecast[12].UsageWH = 100

		entries := c.Schedule(ctx, forecast, 0.5)
		assert.Equal(t, 500.0, entries[12].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateMixed, entries[12].SuggestedState)
	})

	t.Run("Prefers Low Grid Demand Then Surplus", func(t *testing.T) {
		forecast := flatForecast(start)
		forecast[8] = types.ForecastSample{Timestamp: forecast[8].Timestamp, PVProdWH: 900, GridDemandLevel: 2}
		forecast[9] = types.ForecastSample{Timestamp: forecast[9].Timestamp, PVProdWH: 200, GridDemandLevel: 0}
		forecast[10] = types.ForecastSample{Timestamp: forecast[10].Timestamp, PVProdWH: 400, GridDemandLevel: 0}
		forecast[11] = types.ForecastSample{Timestamp: forecast[11].Timestamp, PVProdWH: 500, GridDemandLevel: 1}

		entries := c.Schedule(ctx, forecast, 0.7)
		// hour 10 first (level 0, largest surplus), then hour 9, then hour 11
		assert.Equal(t, 400.0, entries[10].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateChargeBattery, entries[10].SuggestedState)
		assert.Equal(t, 200.0, entries[9].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateChargeBattery, entries[9].SuggestedState)
		assert.InDelta(t, 100.0, entries[11].BatteryInputWH, 1e-9)
		assert.Equal(t, types.SuggestedStateMixed, entries[11].SuggestedState)
		// the stressed hour is never needed
		assert.Equal(t, 0.0, entries[8].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateUseSolar, entries[8].SuggestedState)
	})

	t.Run("Ties Keep Chronological Order", func(t *testing.T) {
		forecast := flatForecast(start)
		forecast[14].PVProdWH = 300
		forecast[11].PVProdWH = 300
		forecast[13].PVProdWH = 300

		entries := c.Schedule(ctx, forecast, 0.3)
		assert.Equal(t, 300.0, entries[11].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateChargeBattery, entries[11].SuggestedState)
		assert.Equal(t, 0.0, entries[13].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateUseSolar, entries[13].SuggestedState)
		assert.Equal(t, 0.0, entries[14].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateUseSolar, entries[14].SuggestedState)
	})

	t.Run("No Deficit -> Use Solar Or Grid", func(t *testing.T) {
		forecast := flatForecast(start)
		forecast[9].PVProdWH = 100
		forecast[10].PVProdWH = 100
		forecast[10].UsageWH = 150

		for _, deficit := range []float64{0, -1} {
			res := c.ScheduleResult(ctx, forecast, deficit)
			assert.Equal(t, 0.0, res.RemainingWH)
			for i, e := range res.Entries {
				assert.Equal(t, 0.0, e.BatteryInputWH)
				if i == 9 {
					assert.Equal(t, types.SuggestedStateUseSolar, e.SuggestedState)
				} else {
					assert.Equal(t, types.SuggestedStateUseGrid, e.SuggestedState, "hour %d", i)
				}
			}
		}
	})

	t.Run("Insufficient Surplus", func(t *testing.T) {
		forecast := flatForecast(start)
		forecast[10].PVProdWH = 100
		forecast[11].PVProdWH = 150
		forecast[12].PVProdWH = 50
		forecast[12].UsageWH = 200

		res := c.ScheduleResult(ctx, forecast, 2.0)
		assert.Equal(t, 100.0, res.Entries[10].BatteryInputWH)
		assert.Equal(t, 150.0, res.Entries[11].BatteryInputWH)
		assert.Equal(t, 0.0, res.Entries[12].BatteryInputWH)
		assert.Equal(t, types.SuggestedStateUseGrid, res.Entries[12].SuggestedState)
		assert.InDelta(t, 1750, res.RemainingWH, 1e-9)
	})

	t.Run("Empty Forecast", func(t *testing.T) {
		res := c.ScheduleResult(ctx, nil, 1)
		assert.Empty(t, res.Entries)
		assert.Equal(t, 1000.0, res.RemainingWH)
	})
}

func randomForecast(rng *rand.Rand, start time.Time) []types.ForecastSample {
	forecast := flatForecast(start)
	for i := range forecast {
		forecast[i].PVProdWH = float64(rng.Intn(8)) * 50
		forecast[i].UsageWH = float64(rng.Intn(6)) * 40
		forecast[i].GridDemandLevel = rng.Intn(4)
	}
	return forecast
}

func TestScheduleInvariants(t *testing.T) {
	c := NewController()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for n := 0; n < 200; n++ {
		forecast := randomForecast(rng, start)
		deficitKWH := rng.Float64() * 3

		var positiveSurplus float64
		for _, f := range forecast {
			positiveSurplus += max(0, f.SurplusWH())
		}

		res := c.ScheduleResult(ctx, forecast, deficitKWH)
		require.Len(t, res.Entries, len(forecast))

		var total float64
		for i, e := range res.Entries {
			require.Equal(t, forecast[i].Timestamp, e.Timestamp, "output must stay chronological")
			require.GreaterOrEqual(t, e.BatteryInputWH, 0.0)
			require.LessOrEqual(t, e.BatteryInputWH, max(0, forecast[i].SurplusWH()))
			total += e.BatteryInputWH
		}
		require.LessOrEqual(t, total, deficitKWH*1000+1e-6)
		if positiveSurplus >= deficitKWH*1000 {
			require.InDelta(t, deficitKWH*1000, total, 1e-6)
			require.InDelta(t, 0, res.RemainingWH, 1e-6)
		} else {
			require.InDelta(t, positiveSurplus, total, 1e-6)
		}

		again := c.ScheduleResult(ctx, forecast, deficitKWH)
		first, err := json.Marshal(res.Entries)
		require.NoError(t, err)
		second, err := json.Marshal(again.Entries)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}
