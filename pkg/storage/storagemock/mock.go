package storagemock

import (
	"context"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/storage"
	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context) (types.Settings, int, error) {
	args := m.Called(ctx)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	args := m.Called(ctx, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) InsertDispatchRecord(ctx context.Context, record types.DispatchRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDatabase) GetLatestDispatchRecord(ctx context.Context) (*types.DispatchRecord, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*types.DispatchRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetDispatchHistory(ctx context.Context, start, end time.Time) ([]types.DispatchRecord, error) {
	args := m.Called(ctx, start, end)
	if r := args.Get(0); r != nil {
		return r.([]types.DispatchRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) SetBatteryState(ctx context.Context, state types.BatteryState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockDatabase) GetBatteryState(ctx context.Context) (types.BatteryState, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.BatteryState), args.Error(1)
}

func (m *MockDatabase) InsertSchedule(ctx context.Context, schedule types.Schedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockDatabase) GetLatestSchedule(ctx context.Context) (types.Schedule, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Schedule), args.Error(1)
}

func (m *MockDatabase) UpsertSolarForecast(ctx context.Context, samples []types.SolarSample) error {
	args := m.Called(ctx, samples)
	return args.Error(0)
}

func (m *MockDatabase) UpsertGridForecast(ctx context.Context, samples []types.GridSample) error {
	args := m.Called(ctx, samples)
	return args.Error(0)
}

func (m *MockDatabase) UpsertConsumption(ctx context.Context, stats []types.ConsumptionStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *MockDatabase) GetSolarForecast(ctx context.Context, start, end time.Time) ([]types.SolarSample, error) {
	args := m.Called(ctx, start, end)
	if r := args.Get(0); r != nil {
		return r.([]types.SolarSample), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetGridForecast(ctx context.Context, start, end time.Time) ([]types.GridSample, error) {
	args := m.Called(ctx, start, end)
	if r := args.Get(0); r != nil {
		return r.([]types.GridSample), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetConsumptionHistory(ctx context.Context, start, end time.Time) ([]types.ConsumptionStats, error) {
	args := m.Called(ctx, start, end)
	if r := args.Get(0); r != nil {
		return r.([]types.ConsumptionStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
