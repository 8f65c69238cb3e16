package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// Provider supplies the forecasts a Table is built from. Samples may be sparse.
type Provider interface {
	GetSolarForecast(ctx context.Context, start, end time.Time) ([]types.SolarSample, error)
	GetGridForecast(ctx context.Context, start, end time.Time) ([]types.GridSample, error)
	GetConsumptionHistory(ctx context.Context, start, end time.Time) ([]types.ConsumptionStats, error)
}

// Load fetches the next 24 hours of forecasts starting at the hour containing
// now, along with the last settings.UsageHistoryDays of consumption, and
// builds the Table.
func Load(ctx context.Context, p Provider, now time.Time, settings types.Settings) (Table, error) {
	start := now.Truncate(time.Hour)
	end := start.Add(Hours * time.Hour)

	solar, err := p.GetSolarForecast(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get solar forecast: %w", err)
	}
	grid, err := p.GetGridForecast(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get grid forecast: %w", err)
	}

	var usage UsageProfile
	if settings.UsageHistoryDays > 0 {
		history, err := p.GetConsumptionHistory(ctx, start.AddDate(0, 0, -settings.UsageHistoryDays), start)
		if err != nil {
			return nil, fmt.Errorf("failed to get consumption history: %w", err)
		}
		usage = UsageProfileFromHistory(history, settings.IgnoreHourUsageOverMultiple)
	}

	return Build(ctx, start, solar, grid, usage), nil
}
