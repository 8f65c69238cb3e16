package controller

import (
	"context"
	"log/slog"
	"sort"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// ScheduleResult is a plan along with the part of the deficit the forecast
// surplus could not cover.
type ScheduleResult struct {
	Entries     []types.ScheduleEntry
	RemainingWH float64
}

// Schedule plans battery charging over the forecast so that the battery
// deficit is filled from solar surplus. Entries are returned in the same order
// as the forecast.
func (c *Controller) Schedule(ctx context.Context, forecast []types.ForecastSample, energyDeficitKWH float64) []types.ScheduleEntry {
	return c.ScheduleResult(ctx, forecast, energyDeficitKWH).Entries
}

// ScheduleResult is Schedule but also reports how much of the deficit is left
// unresolved.
func (c *Controller) ScheduleResult(ctx context.Context, forecast []types.ForecastSample, energyDeficitKWH float64) ScheduleResult {
	entries := make([]types.ScheduleEntry, len(forecast))
	planned := make([]bool, len(forecast))
	for i, f := range forecast {
		entries[i] = types.ScheduleEntry{
			Timestamp:       f.Timestamp,
			SuggestedState:  types.SuggestedStateUseGrid,
			SurplusWH:       f.SurplusWH(),
			GridDemandLevel: f.GridDemandLevel,
		}
	}

	// phase 1: fill the deficit starting with the least stressed grid hours and
	// then the largest surplus
	remaining := max(0, energyDeficitKWH) * 1000
	order := make([]int, len(forecast))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		fa, fb := forecast[order[a]], forecast[order[b]]
		if fa.GridDemandLevel != fb.GridDemandLevel {
			return fa.GridDemandLevel < fb.GridDemandLevel
		}
		return fa.SurplusWH() > fb.SurplusWH()
	})
	for _, i := range order {
		if remaining <= 0 {
			break
		}
		surplus := entries[i].SurplusWH
		if surplus <= 0 {
			continue
		}
		charge := min(surplus, remaining)
		entries[i].BatteryInputWH = charge
		if surplus > charge {
			entries[i].SuggestedState = types.SuggestedStateMixed
		} else {
			entries[i].SuggestedState = types.SuggestedStateChargeBattery
		}
		planned[i] = true
		remaining -= charge

		slog.DebugContext(ctx, "planned battery charge",
			slog.Time("ts", entries[i].Timestamp),
			slog.Float64("surplusWH", surplus),
			slog.Float64("chargeWH", charge),
			slog.Float64("remainingWH", remaining),
		)
	}

	// phase 2: any other hour with surplus runs the household from solar
	for i := range entries {
		if planned[i] {
			continue
		}
		if entries[i].SurplusWH > 0 {
			entries[i].SuggestedState = types.SuggestedStateUseSolar
		}
	}

	remaining = max(0, remaining)
	if remaining > 0 {
		slog.DebugContext(ctx, "forecast surplus does not cover battery deficit",
			slog.Float64("deficitKWH", energyDeficitKWH),
			slog.Float64("remainingWH", remaining),
		)
	}

	return ScheduleResult{
		Entries:     entries,
		RemainingWH: remaining,
	}
}
