package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)

	t.Run("Empty Inputs Fill Every Hour", func(t *testing.T) {
		table := Build(ctx, start.Add(25*time.Minute), nil, nil, nil)
		require.Len(t, table, Hours)
		for i, s := range table {
			assert.Equal(t, start.Add(time.Duration(i)*time.Hour), s.Timestamp)
			assert.Equal(t, 0.0, s.PVProdWH)
			assert.Equal(t, 0.0, s.UsageWH)
			assert.Equal(t, types.GridLevelLow, s.GridDemandLevel)
		}
	})

	t.Run("Aligns On Hours", func(t *testing.T) {
		solar := []types.SolarSample{
			{Timestamp: start.Add(2*time.Hour + 15*time.Minute), WattHours: 100},
			{Timestamp: start.Add(2*time.Hour + 45*time.Minute), WattHours: 50},
			{Timestamp: start.Add(5 * time.Hour), WattHours: 300},
		}
		grid := []types.GridSample{
			{Timestamp: start.Add(2 * time.Hour), Level: types.GridLevelNormal},
			{Timestamp: start.Add(2*time.Hour + 30*time.Minute), Level: types.GridLevelCritical},
			{Timestamp: start.Add(3 * time.Hour), Level: types.GridLevelElevated},
		}
		table := Build(ctx, start, solar, grid, nil)
		require.Len(t, table, Hours)

		assert.Equal(t, 150.0, table[2].PVProdWH)
		assert.Equal(t, types.GridLevelCritical, table[2].GridDemandLevel)
		assert.Equal(t, 0.0, table[3].PVProdWH)
		assert.Equal(t, types.GridLevelElevated, table[3].GridDemandLevel)
		assert.Equal(t, 300.0, table[5].PVProdWH)
		assert.Equal(t, types.GridLevelLow, table[5].GridDemandLevel)
	})

	t.Run("Ignores Samples Outside The Window", func(t *testing.T) {
		solar := []types.SolarSample{
			{Timestamp: start.Add(-time.Minute), WattHours: 100},
			{Timestamp: start.Add(Hours * time.Hour), WattHours: 100},
			{Timestamp: start.Add(Hours*time.Hour - time.Minute), WattHours: 10},
		}
		table := Build(ctx, start, solar, nil, nil)
		require.Len(t, table, Hours)
		assert.Equal(t, 0.0, table[0].PVProdWH)
		assert.Equal(t, 10.0, table[Hours-1].PVProdWH)
	})

	t.Run("Clamps Negative Values", func(t *testing.T) {
		solar := []types.SolarSample{{Timestamp: start, WattHours: -20}}
		usage := UsageProfile{start.Hour(): -5, start.Hour() + 1: 75}
		table := Build(ctx, start, solar, nil, usage)
		assert.Equal(t, 0.0, table[0].PVProdWH)
		assert.Equal(t, 0.0, table[0].UsageWH)
		assert.Equal(t, 75.0, table[1].UsageWH)
		assert.Equal(t, 0.0, table[2].UsageWH)
	})

	t.Run("Total Surplus", func(t *testing.T) {
		solar := []types.SolarSample{
			{Timestamp: start, WattHours: 100},
			{Timestamp: start.Add(time.Hour), WattHours: 50},
		}
		usage := UsageProfile{start.Hour(): 40, start.Hour() + 1: 80}
		table := Build(ctx, start, solar, nil, usage)
		assert.Equal(t, 60.0, table.TotalSurplusWH())
	})
}

func TestExpandGridIntervals(t *testing.T) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Aligned", func(t *testing.T) {
		samples := ExpandGridIntervals([]types.GridInterval{
			{From: base, To: base.Add(3 * time.Hour), State: types.StromGedachtOrange},
		})
		require.Len(t, samples, 3)
		for i, s := range samples {
			assert.Equal(t, base.Add(time.Duration(i)*time.Hour), s.Timestamp)
			assert.Equal(t, types.GridLevelElevated, s.Level)
		}
	})

	t.Run("Partial Hours Are Dropped", func(t *testing.T) {
		samples := ExpandGridIntervals([]types.GridInterval{
			{From: base.Add(30 * time.Minute), To: base.Add(3*time.Hour + 30*time.Minute), State: types.StromGedachtGreen},
		})
		require.Len(t, samples, 2)
		assert.Equal(t, base.Add(time.Hour), samples[0].Timestamp)
		assert.Equal(t, base.Add(2*time.Hour), samples[1].Timestamp)
		assert.Equal(t, types.GridLevelNormal, samples[0].Level)
	})

	t.Run("Too Short", func(t *testing.T) {
		samples := ExpandGridIntervals([]types.GridInterval{
			{From: base.Add(10 * time.Minute), To: base.Add(50 * time.Minute), State: types.StromGedachtRed},
		})
		assert.Empty(t, samples)
	})

	t.Run("Multiple Intervals", func(t *testing.T) {
		samples := ExpandGridIntervals([]types.GridInterval{
			{From: base, To: base.Add(time.Hour), State: types.StromGedachtSuperGreen},
			{From: base.Add(time.Hour), To: base.Add(2 * time.Hour), State: types.StromGedachtRed},
		})
		assert.Equal(t, []types.GridSample{
			{Timestamp: base, Level: types.GridLevelLow},
			{Timestamp: base.Add(time.Hour), Level: types.GridLevelCritical},
		}, samples)
	})
}

func TestUsageProfileFromHistory(t *testing.T) {
	h1 := time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC)
	h2 := h1.AddDate(0, 0, -1)
	h3 := h1.AddDate(0, 0, -2)
	h4 := h1.AddDate(0, 0, -3)

	t.Run("Basic Average", func(t *testing.T) {
		profile := UsageProfileFromHistory([]types.ConsumptionStats{
			{TSHourStart: h1, HomeWH: 100},
			{TSHourStart: h2, HomeWH: 300},
			{TSHourStart: h1.Add(time.Hour), HomeWH: 50},
			{HomeWH: 1000},
		}, 0)
		assert.InDelta(t, 200, profile[14], 0.001)
		assert.InDelta(t, 50, profile[15], 0.001)
		assert.Len(t, profile, 2)
		assert.InDelta(t, 200, profile.At(h1.Add(20*time.Minute)), 0.001)
	})

	t.Run("Outlier", func(t *testing.T) {
		history := []types.ConsumptionStats{
			{TSHourStart: h1, HomeWH: 100},
			{TSHourStart: h2, HomeWH: 110},
			{TSHourStart: h3, HomeWH: 90},
			{TSHourStart: h4, HomeWH: 1000},
		}
		assert.InDelta(t, 325, UsageProfileFromHistory(history, 0)[14], 0.001)
		assert.InDelta(t, 100, UsageProfileFromHistory(history, 5)[14], 0.001)
		assert.InDelta(t, 325, UsageProfileFromHistory(history, 15)[14], 0.001)
	})

	t.Run("Not Enough Points For Outlier", func(t *testing.T) {
		history := []types.ConsumptionStats{
			{TSHourStart: h1, HomeWH: 100},
			{TSHourStart: h2, HomeWH: 1000},
		}
		assert.InDelta(t, 550, UsageProfileFromHistory(history, 2)[14], 0.001)
	})

	t.Run("Nil Profile", func(t *testing.T) {
		var profile UsageProfile
		assert.Equal(t, 0.0, profile.At(h1))
	})
}

type fakeProvider struct {
	solar     []types.SolarSample
	grid      []types.GridSample
	history   []types.ConsumptionStats
	err       error
	histStart time.Time
}

func (f *fakeProvider) GetSolarForecast(context.Context, time.Time, time.Time) ([]types.SolarSample, error) {
	return f.solar, f.err
}

func (f *fakeProvider) GetGridForecast(context.Context, time.Time, time.Time) ([]types.GridSample, error) {
	return f.grid, nil
}

func (f *fakeProvider) GetConsumptionHistory(_ context.Context, start, _ time.Time) ([]types.ConsumptionStats, error) {
	f.histStart = start
	return f.history, nil
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 9, 40, 0, 0, time.UTC)
	start := now.Truncate(time.Hour)

	t.Run("Builds Table", func(t *testing.T) {
		p := &fakeProvider{
			solar:   []types.SolarSample{{Timestamp: start.Add(time.Hour), WattHours: 250}},
			grid:    []types.GridSample{{Timestamp: start, Level: types.GridLevelCritical}},
			history: []types.ConsumptionStats{{TSHourStart: start.AddDate(0, 0, -1).Add(time.Hour), HomeWH: 90}},
		}
		settings := types.DefaultSettings()
		table, err := Load(ctx, p, now, settings)
		require.NoError(t, err)
		require.Len(t, table, Hours)
		assert.Equal(t, start, table[0].Timestamp)
		assert.Equal(t, types.GridLevelCritical, table[0].GridDemandLevel)
		assert.Equal(t, 250.0, table[1].PVProdWH)
		assert.Equal(t, 90.0, table[1].UsageWH)
		assert.Equal(t, start.AddDate(0, 0, -settings.UsageHistoryDays), p.histStart)
	})

	t.Run("Skips History When Disabled", func(t *testing.T) {
		p := &fakeProvider{history: []types.ConsumptionStats{{TSHourStart: start, HomeWH: 90}}}
		settings := types.DefaultSettings()
		settings.UsageHistoryDays = 0
		table, err := Load(ctx, p, now, settings)
		require.NoError(t, err)
		assert.Equal(t, 0.0, table[0].UsageWH)
		assert.True(t, p.histStart.IsZero())
	})

	t.Run("Provider Error", func(t *testing.T) {
		p := &fakeProvider{err: errors.New("unavailable")}
		_, err := Load(ctx, p, now, types.DefaultSettings())
		assert.ErrorContains(t, err, "failed to get solar forecast")
	})
}
