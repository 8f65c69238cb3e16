package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// Hours is the number of slots in a forecast table.
const Hours = 24

// Table is the merged hourly forecast the scheduler plans over. It always has
// Hours entries in chronological order.
type Table []types.ForecastSample

// Build merges the solar and grid forecasts into a Table starting at the hour
// containing start. Hours missing from the solar forecast produce nothing,
// hours missing from the grid forecast are assumed to be low demand and hours
// missing from the usage profile use nothing. Samples outside the 24 hours are
// ignored. Several solar samples in the same hour are summed and the highest
// grid level in an hour wins.
func Build(ctx context.Context, start time.Time, solar []types.SolarSample, grid []types.GridSample, usage UsageProfile) Table {
	start = start.Truncate(time.Hour)
	end := start.Add(Hours * time.Hour)

	slot := func(ts time.Time) (int, bool) {
		ts = ts.Truncate(time.Hour)
		if ts.Before(start) || !ts.Before(end) {
			return 0, false
		}
		return int(ts.Sub(start) / time.Hour), true
	}

	table := make(Table, Hours)
	for i := range table {
		ts := start.Add(time.Duration(i) * time.Hour)
		table[i] = types.ForecastSample{
			Timestamp:       ts,
			UsageWH:         max(0, usage.At(ts)),
			GridDemandLevel: types.GridLevelLow,
		}
	}

	var solarHours int
	seenSolar := make([]bool, Hours)
	for _, s := range solar {
		i, ok := slot(s.Timestamp)
		if !ok {
			continue
		}
		table[i].PVProdWH += max(0, s.WattHours)
		if !seenSolar[i] {
			seenSolar[i] = true
			solarHours++
		}
	}

	var gridHours int
	seenGrid := make([]bool, Hours)
	for _, g := range grid {
		i, ok := slot(g.Timestamp)
		if !ok {
			continue
		}
		if !seenGrid[i] {
			seenGrid[i] = true
			gridHours++
			table[i].GridDemandLevel = g.Level
			continue
		}
		table[i].GridDemandLevel = max(table[i].GridDemandLevel, g.Level)
	}

	if solarHours < Hours || gridHours < Hours {
		slog.DebugContext(ctx, "forecast has missing hours",
			slog.Time("start", start),
			slog.Int("solarHours", solarHours),
			slog.Int("gridHours", gridHours),
		)
	}
	return table
}

// TotalSurplusWH sums the positive surplus across the table.
func (t Table) TotalSurplusWH() float64 {
	var total float64
	for _, s := range t {
		total += max(0, s.SurplusWH())
	}
	return total
}
