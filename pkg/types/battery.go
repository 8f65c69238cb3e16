package types

import "time"

// BatteryState is a read-only snapshot of the virtual battery.
type BatteryState struct {
	CapacityKWH         float64 `json:"capacityKWH"`
	CurrentChargeKWH    float64 `json:"currentChargeKWH"`
	ChargeEfficiency    float64 `json:"chargeEfficiency"`
	DischargeEfficiency float64 `json:"dischargeEfficiency"`
	DischargeEnabled    bool    `json:"dischargeEnabled"`
}

// PercentFull returns the current charge as a percentage (0-100) of capacity.
func (b BatteryState) PercentFull() float64 {
	if b.CapacityKWH <= 0 {
		return 0
	}
	return 100 * b.CurrentChargeKWH / b.CapacityKWH
}

// DeficitKWH returns how much energy the battery is missing to be full.
func (b BatteryState) DeficitKWH() float64 {
	return max(0, b.CapacityKWH-b.CurrentChargeKWH)
}

// BatteryAction is what the battery did during the last tick.
type BatteryAction string

const (
	BatteryActionOff         BatteryAction = "off"
	BatteryActionIdle        BatteryAction = "idle"
	BatteryActionCharging    BatteryAction = "charging"
	BatteryActionDischarging BatteryAction = "discharging"
)

// BatteryStatus is the battery report exposed over the API.
type BatteryStatus struct {
	Timestamp     time.Time     `json:"timestamp"`
	Active        bool          `json:"active"`
	Action        BatteryAction `json:"action"`
	CurrentPowerW float64       `json:"currentPowerW"`
	State         BatteryState  `json:"state"`
	PercentFull   float64       `json:"percentFull"`
	// TimeEstimateHours is the time to full when charging or to empty when
	// discharging. It is nil when idle.
	TimeEstimateHours *float64 `json:"timeEstimateHours,omitempty"`
}

// EstimateHours returns the hours until the battery is full or empty at the
// given power or nil if the battery isn't moving energy.
func EstimateHours(state BatteryState, action BatteryAction, powerW float64) *float64 {
	if powerW <= 0 {
		return nil
	}
	var h float64
	switch action {
	case BatteryActionCharging:
		h = (state.CapacityKWH - state.CurrentChargeKWH) / (powerW / 1000)
	case BatteryActionDischarging:
		h = state.CurrentChargeKWH / (powerW / 1000)
	default:
		return nil
	}
	return &h
}
