package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/battery"
	"github.com/balkonsolar/balkonsolar/pkg/controller"
	"github.com/balkonsolar/balkonsolar/pkg/forecast"
	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/sensors"
	"github.com/balkonsolar/balkonsolar/pkg/storage"
	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// errPaused is returned by a cycle that was skipped because of the settings.
var errPaused = errors.New("paused")

// Runner owns the battery and drives the real-time tick and the scheduling
// cycle. Every access to the battery goes through mu.
type Runner struct {
	storage    storage.Database
	sensors    sensors.Reader
	controller *controller.Controller

	tickInterval     time.Duration
	scheduleInterval time.Duration
	now              func() time.Time

	mu      sync.Mutex
	battery *battery.EnergyStore
	active  bool
	action  types.BatteryAction
	powerW  float64
}

// ConfiguredRunner creates a Runner and registers its flags.
func ConfiguredRunner(b *battery.EnergyStore, r sensors.Reader, s storage.Database) *Runner {
	tickInterval := lflag.Duration("tick-interval", time.Minute, "How often to read the sensors and update the battery")
	scheduleInterval := lflag.Duration("schedule-interval", 30*time.Minute, "How often to regenerate the day-ahead schedule")
	activate := lflag.Bool("battery-active", false, "Start with the battery active")

	runner := newRunner(b, r, s)
	lflag.Do(func() {
		if *tickInterval <= 0 || *scheduleInterval <= 0 {
			panic(fmt.Sprintf("tick-interval and schedule-interval must be positive: %v, %v", *tickInterval, *scheduleInterval))
		}
		runner.tickInterval = *tickInterval
		runner.scheduleInterval = *scheduleInterval
		runner.active = *activate
	})
	return runner
}

func newRunner(b *battery.EnergyStore, r sensors.Reader, s storage.Database) *Runner {
	return &Runner{
		storage:          s,
		sensors:          r,
		controller:       controller.NewController(),
		tickInterval:     time.Minute,
		scheduleInterval: 30 * time.Minute,
		now:              time.Now,
		battery:          b,
		action:           types.BatteryActionOff,
	}
}

func (r *Runner) getSettingsWithMigration(ctx context.Context) (settingsWithVersion, error) {
	return getSettingsWithMigration(ctx, r.storage)
}

// Restore loads the last persisted battery charge.
func (r *Runner) Restore(ctx context.Context) error {
	state, err := r.storage.GetBatteryState(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Ctx(ctx).InfoContext(ctx, "no saved battery state")
			return nil
		}
		return fmt.Errorf("failed to get battery state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.battery.State()
	if state.CapacityKWH != current.CapacityKWH {
		log.Ctx(ctx).WarnContext(ctx, "saved battery capacity differs from config",
			slog.Float64("savedKWH", state.CapacityKWH),
			slog.Float64("configKWH", current.CapacityKWH),
		)
	}
	r.battery.SetCharge(state.CurrentChargeKWH)
	r.battery.SetDischargeEnabled(state.DischargeEnabled)
	log.Ctx(ctx).InfoContext(ctx, "restored battery state", slog.Float64("chargeKWH", r.battery.State().CurrentChargeKWH))
	return nil
}

// Tick reads the sensors, classifies the moment, moves one interval of energy
// through the battery when it is active and persists the outcome.
func (r *Runner) Tick(ctx context.Context) (types.DispatchRecord, error) {
	settings, err := r.getSettingsWithMigration(ctx)
	if err != nil {
		return types.DispatchRecord{}, fmt.Errorf("failed to get settings: %w", err)
	}
	if settings.Pause {
		return types.DispatchRecord{}, errPaused
	}

	snap, err := r.sensors.Read(ctx)
	if err != nil {
		return types.DispatchRecord{}, fmt.Errorf("failed to read sensors: %w", err)
	}

	r.mu.Lock()
	inputs := types.DispatchInputs{
		GridDemandLevel:    snap.GridDemandLevel,
		SolarProductionW:   snap.SolarW,
		BatteryPercentFull: r.battery.State().PercentFull(),
	}
	state := r.controller.Classify(ctx, inputs, controller.NewClassifierConfig(settings.Settings))
	action := types.BatteryActionOff
	if !settings.DryRun {
		r.applyLocked(ctx, state, snap.GridW)
		action = r.action
	}
	record := types.DispatchRecord{
		Timestamp:     r.now(),
		State:         state,
		Description:   state.Description(),
		Inputs:        inputs,
		Sensors:       snap,
		Battery:       r.battery.State(),
		BatteryAction: action,
		DryRun:        settings.DryRun,
	}
	r.mu.Unlock()

	log.Ctx(ctx).InfoContext(ctx, "dispatch tick",
		slog.String("state", state.String()),
		slog.String("batteryAction", string(record.BatteryAction)),
		slog.Float64("chargeKWH", record.Battery.CurrentChargeKWH),
		slog.Float64("percentFull", record.Battery.PercentFull()),
		slog.Bool("dryRun", settings.DryRun),
	)

	if err := r.storage.InsertDispatchRecord(ctx, record); err != nil {
		return record, fmt.Errorf("failed to insert dispatch record: %w", err)
	}
	if !settings.DryRun {
		if err := r.storage.SetBatteryState(ctx, record.Battery); err != nil {
			return record, fmt.Errorf("failed to save battery state: %w", err)
		}
	}
	return record, nil
}

// applyLocked moves one tick of energy through the battery. Exported power
// charges the battery, imported power is covered from the battery only when
// the household should run on it. The battery turns itself off when full or
// empty.
func (r *Runner) applyLocked(ctx context.Context, state types.DispatchState, gridW float64) {
	r.battery.SetDischargeEnabled(state == types.DispatchStateUseBattery)
	if !r.active {
		r.action = types.BatteryActionOff
		r.powerW = 0
		return
	}

	intervalH := r.tickInterval.Hours()
	switch {
	case gridW < 0:
		amount := -gridW * intervalH / 1000
		r.battery.Charge(amount)
		r.action = types.BatteryActionCharging
		r.powerW = -gridW
		log.Ctx(ctx).DebugContext(ctx, "charged battery from surplus", slog.Float64("kwh", amount))
	case gridW > 0:
		amount := gridW * intervalH / 1000
		delivered := r.battery.Discharge(amount)
		if delivered > 0 {
			r.action = types.BatteryActionDischarging
			r.powerW = gridW
		} else {
			r.action = types.BatteryActionIdle
			r.powerW = 0
		}
		log.Ctx(ctx).DebugContext(ctx, "discharged battery to cover import", slog.Float64("kwh", delivered))
	default:
		r.action = types.BatteryActionIdle
		r.powerW = 0
	}

	current := r.battery.State()
	if current.CurrentChargeKWH >= current.CapacityKWH {
		r.active = false
		log.Ctx(ctx).InfoContext(ctx, "battery full, turning off")
	} else if current.CurrentChargeKWH <= 0 {
		r.active = false
		log.Ctx(ctx).InfoContext(ctx, "battery empty, turning off")
	}
}

// RunSchedule plans the next 24 hours from the stored forecasts and the
// current battery deficit and persists the plan.
func (r *Runner) RunSchedule(ctx context.Context) (types.Schedule, error) {
	settings, err := r.getSettingsWithMigration(ctx)
	if err != nil {
		return types.Schedule{}, fmt.Errorf("failed to get settings: %w", err)
	}
	if settings.Pause {
		return types.Schedule{}, errPaused
	}

	now := r.now()
	table, err := forecast.Load(ctx, r.storage, now, settings.Settings)
	if err != nil {
		return types.Schedule{}, err
	}

	r.mu.Lock()
	deficit := r.battery.DeficitKWH()
	r.mu.Unlock()

	res := r.controller.ScheduleResult(ctx, table, deficit)
	schedule := types.Schedule{
		GeneratedAt: now,
		DeficitKWH:  deficit,
		RemainingWH: res.RemainingWH,
		Entries:     res.Entries,
	}

	log.Ctx(ctx).InfoContext(ctx, "generated schedule",
		slog.Float64("deficitKWH", deficit),
		slog.Float64("plannedWH", schedule.TotalBatteryInputWH()),
		slog.Float64("remainingWH", res.RemainingWH),
		slog.Float64("surplusWH", table.TotalSurplusWH()),
	)

	if err := r.storage.InsertSchedule(ctx, schedule); err != nil {
		return schedule, fmt.Errorf("failed to insert schedule: %w", err)
	}
	return schedule, nil
}

// Status reports the battery and what it is doing.
func (r *Runner) Status() types.BatteryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Runner) statusLocked() types.BatteryStatus {
	state := r.battery.State()
	return types.BatteryStatus{
		Timestamp:         r.now(),
		Active:            r.active,
		Action:            r.action,
		CurrentPowerW:     r.powerW,
		State:             state,
		PercentFull:       state.PercentFull(),
		TimeEstimateHours: types.EstimateHours(state, r.action, r.powerW),
	}
}

// BatteryUpdate is an administrative change to the battery. Nil fields are
// left alone.
type BatteryUpdate struct {
	ChargeKWH        *float64 `json:"chargeKWH,omitempty"`
	Active           *bool    `json:"active,omitempty"`
	DischargeEnabled *bool    `json:"dischargeEnabled,omitempty"`
}

func (u BatteryUpdate) empty() bool {
	return u.ChargeKWH == nil && u.Active == nil && u.DischargeEnabled == nil
}

// UpdateBattery applies an administrative change and persists the new state.
func (r *Runner) UpdateBattery(ctx context.Context, update BatteryUpdate) (types.BatteryStatus, error) {
	r.mu.Lock()
	if update.ChargeKWH != nil {
		r.battery.SetCharge(*update.ChargeKWH)
		log.Ctx(ctx).InfoContext(ctx, "battery charge set", slog.Float64("chargeKWH", r.battery.State().CurrentChargeKWH))
	}
	if update.Active != nil {
		r.active = *update.Active
		if !r.active {
			r.action = types.BatteryActionOff
			r.powerW = 0
		}
		log.Ctx(ctx).InfoContext(ctx, "battery activation changed", slog.Bool("active", r.active))
	}
	// the next tick that isn't a dry run gates discharge by the dispatch state
	if update.DischargeEnabled != nil {
		r.battery.SetDischargeEnabled(*update.DischargeEnabled)
	}
	status := r.statusLocked()
	r.mu.Unlock()

	if err := r.storage.SetBatteryState(ctx, status.State); err != nil {
		return status, fmt.Errorf("failed to save battery state: %w", err)
	}
	return status, nil
}

// Run restores the battery then runs the tick and the scheduling cycle until
// the context is done. Failed cycles are logged and retried on the next
// interval.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Restore(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to restore battery", slog.Any("error", err))
	}

	tick := func() {
		if _, err := r.Tick(ctx); err != nil && !errors.Is(err, errPaused) {
			log.Ctx(ctx).ErrorContext(ctx, "tick failed", slog.Any("error", err))
		}
	}
	schedule := func() {
		if _, err := r.RunSchedule(ctx); err != nil && !errors.Is(err, errPaused) {
			log.Ctx(ctx).ErrorContext(ctx, "schedule failed", slog.Any("error", err))
		}
	}

	tick()
	schedule()

	tickTicker := time.NewTicker(r.tickInterval)
	defer tickTicker.Stop()
	scheduleTicker := time.NewTicker(r.scheduleInterval)
	defer scheduleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tickTicker.C:
			tick()
		case <-scheduleTicker.C:
			schedule()
		}
	}
}
