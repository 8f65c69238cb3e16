package battery

import (
	"errors"
	"fmt"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// ErrInvalidConfig is returned when a battery cannot be built from its config.
var ErrInvalidConfig = errors.New("invalid battery config")

// Config describes a physical battery.
type Config struct {
	CapacityKWH         float64 `json:"capacityKWH"`
	InitialChargeKWH    float64 `json:"initialChargeKWH"`
	ChargeEfficiency    float64 `json:"chargeEfficiency"`
	DischargeEfficiency float64 `json:"dischargeEfficiency"`
}

// DefaultConfig is the 2.56 kWh balcony battery with 95% efficiency each way.
func DefaultConfig() Config {
	return Config{
		CapacityKWH:         2.560,
		InitialChargeKWH:    0,
		ChargeEfficiency:    0.95,
		DischargeEfficiency: 0.95,
	}
}

// Validate checks that the config describes a possible battery.
func (c Config) Validate() error {
	if c.CapacityKWH <= 0 {
		return fmt.Errorf("%w: capacity must be greater than 0: %v", ErrInvalidConfig, c.CapacityKWH)
	}
	if c.ChargeEfficiency <= 0 || c.ChargeEfficiency > 1 {
		return fmt.Errorf("%w: charge efficiency must be within (0, 1]: %v", ErrInvalidConfig, c.ChargeEfficiency)
	}
	if c.DischargeEfficiency <= 0 || c.DischargeEfficiency > 1 {
		return fmt.Errorf("%w: discharge efficiency must be within (0, 1]: %v", ErrInvalidConfig, c.DischargeEfficiency)
	}
	if c.InitialChargeKWH < 0 || c.InitialChargeKWH > c.CapacityKWH {
		return fmt.Errorf("%w: initial charge must be within [0, %v]: %v", ErrInvalidConfig, c.CapacityKWH, c.InitialChargeKWH)
	}
	return nil
}

// EnergyStore models the energy held by one battery including the losses on
// the way in and out. It is not safe for concurrent use, the owner must
// serialize calls.
type EnergyStore struct {
	capacity            float64
	current             float64
	chargeEfficiency    float64
	dischargeEfficiency float64
	dischargeEnabled    bool
}

// New creates an EnergyStore from the config. Discharging starts disabled.
func New(cfg Config) (*EnergyStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EnergyStore{
		capacity:            cfg.CapacityKWH,
		current:             cfg.InitialChargeKWH,
		chargeEfficiency:    cfg.ChargeEfficiency,
		dischargeEfficiency: cfg.DischargeEfficiency,
	}, nil
}

// Charge adds amountKWH minus the charging losses. Anything above capacity is
// lost.
func (b *EnergyStore) Charge(amountKWH float64) {
	if !(amountKWH > 0) {
		return
	}
	effective := amountKWH * b.chargeEfficiency
	b.current = min(b.capacity, b.current+effective)
}

// Discharge tries to deliver amountKWH to the load and returns the energy that
// was actually delivered after the discharging losses. It returns 0 without
// touching the charge when discharging is disabled.
func (b *EnergyStore) Discharge(amountKWH float64) float64 {
	if !b.dischargeEnabled || !(amountKWH > 0) {
		return 0
	}
	requested := amountKWH / b.dischargeEfficiency
	drawn := min(b.current, requested)
	b.current -= drawn
	return drawn * b.dischargeEfficiency
}

// SetDischargeEnabled gates Discharge.
func (b *EnergyStore) SetDischargeEnabled(enabled bool) {
	b.dischargeEnabled = enabled
}

// SetCharge overrides the current charge, clamped to [0, capacity].
func (b *EnergyStore) SetCharge(kwh float64) {
	b.current = max(0, min(b.capacity, kwh))
}

// State returns a snapshot of the battery.
func (b *EnergyStore) State() types.BatteryState {
	return types.BatteryState{
		CapacityKWH:         b.capacity,
		CurrentChargeKWH:    b.current,
		ChargeEfficiency:    b.chargeEfficiency,
		DischargeEfficiency: b.dischargeEfficiency,
		DischargeEnabled:    b.dischargeEnabled,
	}
}

// DeficitKWH is the energy needed to fill the battery.
func (b *EnergyStore) DeficitKWH() float64 {
	return b.capacity - b.current
}
