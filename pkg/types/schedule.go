package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SuggestedState is the planned recommendation for a forecast hour.
type SuggestedState int

const (
	SuggestedStateUseGrid       SuggestedState = 0
	SuggestedStateChargeBattery SuggestedState = 1
	SuggestedStateMixed         SuggestedState = 2
	SuggestedStateUseSolar      SuggestedState = 3
)

var suggestedStates = [...]struct {
	name        string
	description string
}{
	SuggestedStateUseGrid:       {"useGrid", "Use grid"},
	SuggestedStateChargeBattery: {"chargeBattery", "Charge battery"},
	SuggestedStateMixed:         {"mixed", "Charge battery and power the household from solar"},
	SuggestedStateUseSolar:      {"useSolar", "Power the household from solar"},
}

var _ = [1]struct{}{}[len(suggestedStates)-4]

// Valid returns true if the state is one of the known states.
func (s SuggestedState) Valid() bool {
	return s >= 0 && int(s) < len(suggestedStates)
}

// String returns the short name of the state.
func (s SuggestedState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SuggestedState(%d)", int(s))
	}
	return suggestedStates[s].name
}

// Description returns a human readable description of the state.
func (s SuggestedState) Description() string {
	if !s.Valid() {
		return "Unknown state"
	}
	return suggestedStates[s].description
}

// MarshalJSON encodes the state by name.
func (s SuggestedState) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suggested state: %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *SuggestedState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("invalid suggested state: %s", string(b))
	}
	for i, info := range suggestedStates {
		if info.name == name {
			*s = SuggestedState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown suggested state: %s", name)
}

// ForecastSample is one hour of forecast data.
type ForecastSample struct {
	Timestamp       time.Time `json:"timestamp"`
	PVProdWH        float64   `json:"pvProdWH"`
	UsageWH         float64   `json:"usageWH"`
	GridDemandLevel int       `json:"gridDemandLevel"`
}

// SurplusWH is the predicted production minus usage, negative when the
// household uses more than the panels produce.
func (f ForecastSample) SurplusWH() float64 {
	return f.PVProdWH - f.UsageWH
}

// ScheduleEntry is the plan for a single forecast hour.
type ScheduleEntry struct {
	Timestamp       time.Time      `json:"timestamp"`
	BatteryInputWH  float64        `json:"batteryInputWH"`
	SuggestedState  SuggestedState `json:"suggestedState"`
	SurplusWH       float64        `json:"surplusWH"`
	GridDemandLevel int            `json:"gridDemandLevel"`
}

// Schedule is a generated day-ahead plan.
type Schedule struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	DeficitKWH  float64         `json:"deficitKWH"`
	RemainingWH float64         `json:"remainingWH"`
	Entries     []ScheduleEntry `json:"entries"`
}

// TotalBatteryInputWH sums the planned battery input over all entries.
func (s Schedule) TotalBatteryInputWH() float64 {
	var total float64
	for _, e := range s.Entries {
		total += e.BatteryInputWH
	}
	return total
}
