package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/forecast"
	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Database defines the interface for persisting data and retrieving settings.
type Database interface {
	// Settings
	GetSettings(ctx context.Context) (types.Settings, int, error)
	SetSettings(ctx context.Context, settings types.Settings, version int) error

	// Real-time dispatch
	InsertDispatchRecord(ctx context.Context, record types.DispatchRecord) error
	GetLatestDispatchRecord(ctx context.Context) (*types.DispatchRecord, error)
	GetDispatchHistory(ctx context.Context, start, end time.Time) ([]types.DispatchRecord, error)

	// Battery snapshot so the charge survives restarts
	SetBatteryState(ctx context.Context, state types.BatteryState) error
	GetBatteryState(ctx context.Context) (types.BatteryState, error)

	// Schedules
	InsertSchedule(ctx context.Context, schedule types.Schedule) error
	GetLatestSchedule(ctx context.Context) (types.Schedule, error)

	// Forecasts and consumption, the forecast.Provider side
	UpsertSolarForecast(ctx context.Context, samples []types.SolarSample) error
	UpsertGridForecast(ctx context.Context, samples []types.GridSample) error
	UpsertConsumption(ctx context.Context, stats []types.ConsumptionStats) error
	forecast.Provider

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
