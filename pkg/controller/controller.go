package controller

import (
	"context"
	"log/slog"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// ClassifierConfig holds the thresholds used to classify a real-time snapshot.
type ClassifierConfig struct {
	MaxSolarCapacityW   float64
	SolarHighFraction   float64
	BatteryHighFraction float64
	BatteryLowFraction  float64
	GridHighThreshold   int
}

// NewClassifierConfig pulls the classifier thresholds out of the stored
// settings.
func NewClassifierConfig(settings types.Settings) ClassifierConfig {
	return ClassifierConfig{
		MaxSolarCapacityW:   settings.MaxSolarCapacityW,
		SolarHighFraction:   settings.SolarHighFraction,
		BatteryHighFraction: settings.BatteryHighFraction,
		BatteryLowFraction:  settings.BatteryLowFraction,
		GridHighThreshold:   settings.GridHighThreshold,
	}
}

// Flags are the conditions derived from a snapshot that drive the decision.
type Flags struct {
	GridHigh      bool `json:"gridHigh"`
	SolarHigh     bool `json:"solarHigh"`
	BatteryFilled bool `json:"batteryFilled"`
	BatteryLow    bool `json:"batteryLow"`
}

// Controller turns sensor snapshots and forecasts into dispatch decisions.
type Controller struct {
}

// NewController creates a new Controller.
func NewController() *Controller {
	return &Controller{}
}

// Flags derives the classifier conditions. Negative solar production is treated
// as zero and the battery percentage is clamped to [0, 100].
func (c *Controller) Flags(inputs types.DispatchInputs, cfg ClassifierConfig) Flags {
	solarW := max(0, inputs.SolarProductionW)
	percent := max(0, min(100, inputs.BatteryPercentFull))
	return Flags{
		GridHigh:      inputs.GridDemandLevel > cfg.GridHighThreshold,
		SolarHigh:     solarW > cfg.SolarHighFraction*cfg.MaxSolarCapacityW,
		BatteryFilled: percent >= cfg.BatteryHighFraction*100,
		BatteryLow:    percent < cfg.BatteryLowFraction*100,
	}
}

// Classify decides how the household should be powered right now. Solar takes
// precedence, then the battery floor, then the grid demand.
func (c *Controller) Classify(ctx context.Context, inputs types.DispatchInputs, cfg ClassifierConfig) types.DispatchState {
	f := c.Flags(inputs, cfg)

	var state types.DispatchState
	switch {
	case f.SolarHigh && f.BatteryFilled:
		state = types.DispatchStateUseSolar
	case f.SolarHigh:
		state = types.DispatchStateChargeBattery
	case f.BatteryLow || !f.GridHigh:
		state = types.DispatchStateUseGrid
	default:
		state = types.DispatchStateUseBattery
	}

	slog.DebugContext(ctx, "classified dispatch state",
		slog.Int("gridDemandLevel", inputs.GridDemandLevel),
		slog.Float64("solarProductionW", inputs.SolarProductionW),
		slog.Float64("batteryPercentFull", inputs.BatteryPercentFull),
		slog.Bool("gridHigh", f.GridHigh),
		slog.Bool("solarHigh", f.SolarHigh),
		slog.Bool("batteryFilled", f.BatteryFilled),
		slog.Bool("batteryLow", f.BatteryLow),
		slog.String("state", state.String()),
	)
	return state
}
