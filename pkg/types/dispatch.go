package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DispatchState is the real-time operating recommendation for the household.
type DispatchState int

const (
	DispatchStateUseSolar      DispatchState = 0
	DispatchStateChargeBattery DispatchState = 1
	DispatchStateUseBattery    DispatchState = 2
	DispatchStateUseGrid       DispatchState = 3
)

type dispatchStateInfo struct {
	name        string
	description string
}

// dispatchStates is indexed by DispatchState so every state has exactly one
// entry. Adding a state without a description fails the length check below.
var dispatchStates = [...]dispatchStateInfo{
	DispatchStateUseSolar:      {"useSolar", "Use solar to power household"},
	DispatchStateChargeBattery: {"chargeBattery", "Charge battery from solar"},
	DispatchStateUseBattery:    {"useBattery", "Use battery to power household"},
	DispatchStateUseGrid:       {"useGrid", "Use grid to power household"},
}

var _ = [1]struct{}{}[len(dispatchStates)-4]

// DispatchStates lists every DispatchState in numeric order.
func DispatchStates() []DispatchState {
	return []DispatchState{
		DispatchStateUseSolar,
		DispatchStateChargeBattery,
		DispatchStateUseBattery,
		DispatchStateUseGrid,
	}
}

// Valid returns true if the state is one of the known states.
func (s DispatchState) Valid() bool {
	return s >= 0 && int(s) < len(dispatchStates)
}

// String returns the short name of the state.
func (s DispatchState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("DispatchState(%d)", int(s))
	}
	return dispatchStates[s].name
}

// Description returns a human readable description of the state.
func (s DispatchState) Description() string {
	if !s.Valid() {
		return "Unknown state"
	}
	return dispatchStates[s].description
}

// MarshalJSON encodes the state by name.
func (s DispatchState) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid dispatch state: %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the state name or its numeric value.
func (s *DispatchState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid dispatch state: %s", string(b))
		}
		if !DispatchState(n).Valid() {
			return fmt.Errorf("invalid dispatch state: %d", n)
		}
		*s = DispatchState(n)
		return nil
	}
	for i, info := range dispatchStates {
		if info.name == name {
			*s = DispatchState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown dispatch state: %s", name)
}

// DispatchInputs is the snapshot of conditions the classifier decides on.
type DispatchInputs struct {
	GridDemandLevel    int     `json:"gridDemandLevel"`
	SolarProductionW   float64 `json:"solarProductionW"`
	BatteryPercentFull float64 `json:"batteryPercentFull"` // 0-100
}

// SensorSnapshot is a single reading of the real-time sensors.
type SensorSnapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	SolarW          float64   `json:"solarW"`
	GridW           float64   `json:"gridW"` // Positive for import, negative for export
	GridDemandLevel int       `json:"gridDemandLevel"`
}

// DispatchRecord is what gets persisted for every real-time tick.
type DispatchRecord struct {
	Timestamp     time.Time      `json:"timestamp"`
	State         DispatchState  `json:"state"`
	Description   string         `json:"description"`
	Inputs        DispatchInputs `json:"inputs"`
	Sensors       SensorSnapshot `json:"sensors"`
	Battery       BatteryState   `json:"battery"`
	BatteryAction BatteryAction  `json:"batteryAction"`
	DryRun        bool           `json:"dryRun,omitempty"`
}
