package types

import "time"

// Grid demand levels. Lower means a less stressed grid.
const (
	GridLevelLow      = 0
	GridLevelNormal   = 1
	GridLevelElevated = 2
	GridLevelCritical = 3
)

// StromGedacht region states.
const (
	StromGedachtSuperGreen = -1
	StromGedachtGreen      = 1
	StromGedachtOrange     = 3
	StromGedachtRed        = 4
)

// GridLevelFromStromGedacht maps a StromGedacht state into a grid demand level.
// Unknown states are treated as low demand.
func GridLevelFromStromGedacht(state int) int {
	switch state {
	case StromGedachtSuperGreen:
		return GridLevelLow
	case StromGedachtGreen:
		return GridLevelNormal
	case StromGedachtOrange:
		return GridLevelElevated
	case StromGedachtRed:
		return GridLevelCritical
	default:
		return GridLevelLow
	}
}

// SolarSample is the predicted solar energy for the hour starting at Timestamp.
type SolarSample struct {
	Timestamp time.Time `json:"timestamp"`
	WattHours float64   `json:"wattHours"`
}

// GridSample is the predicted grid demand level for the hour starting at
// Timestamp.
type GridSample struct {
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level"`
}

// GridInterval is a forecast interval as returned by region grid APIs. The
// interval is [From, To).
type GridInterval struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	State int       `json:"state"`
}

// ConsumptionStats is the household consumption for an hourly period.
type ConsumptionStats struct {
	TSHourStart time.Time `json:"tsHourStart"`
	HomeWH      float64   `json:"homeWH"`
	SolarWH     float64   `json:"solarWH"`
}
