package types

import (
	"errors"
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// Settings represents the configuration stored in the database.
// These are dynamic settings that can be changed without redeploying.
type Settings struct {
	DryRun bool `json:"dryRun"`
	// Pause skips the real-time tick and the scheduling cycle
	Pause bool `json:"pause"`

	// Solar Settings
	// Peak output of the panels (in W)
	MaxSolarCapacityW float64 `json:"maxSolarCapacityW"`
	// Solar is considered high when production exceeds this fraction of
	// MaxSolarCapacityW
	SolarHighFraction float64 `json:"solarHighFraction"`

	// Battery Settings
	// Battery is considered filled at or above this fraction of capacity
	BatteryHighFraction float64 `json:"batteryHighFraction"`
	// Battery is considered low below this fraction of capacity
	BatteryLowFraction float64 `json:"batteryLowFraction"`

	// Grid Settings
	// Grid demand levels above this are considered high
	GridHighThreshold int `json:"gridHighThreshold"`

	// Forecast Settings
	// How many days of consumption history to average into the usage forecast
	UsageHistoryDays int `json:"usageHistoryDays"`
	// Ignore a single hour of history whose usage is over this multiple of the
	// average of the other days, 0 disables
	IgnoreHourUsageOverMultiple float64 `json:"ignoreHourUsageOverMultiple"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	s, _, err := MigrateSettings(Settings{}, 0)
	if err != nil {
		panic(fmt.Errorf("failed to build default settings: %w", err))
	}
	return s
}

// Validate returns an error describing every setting that is out of range.
func (s Settings) Validate() error {
	var errs []error
	if s.MaxSolarCapacityW <= 0 {
		errs = append(errs, fmt.Errorf("maxSolarCapacityW must be greater than 0: %v", s.MaxSolarCapacityW))
	}
	checkFraction := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1]: %v", name, v))
		}
	}
	checkFraction("solarHighFraction", s.SolarHighFraction)
	checkFraction("batteryHighFraction", s.BatteryHighFraction)
	checkFraction("batteryLowFraction", s.BatteryLowFraction)
	if s.GridHighThreshold < 0 {
		errs = append(errs, fmt.Errorf("gridHighThreshold must not be negative: %d", s.GridHighThreshold))
	}
	if s.UsageHistoryDays < 0 {
		errs = append(errs, fmt.Errorf("usageHistoryDays must not be negative: %d", s.UsageHistoryDays))
	}
	if s.IgnoreHourUsageOverMultiple < 0 {
		errs = append(errs, fmt.Errorf("ignoreHourUsageOverMultiple must not be negative: %v", s.IgnoreHourUsageOverMultiple))
	}
	return errors.Join(errs...)
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.MaxSolarCapacityW == 0 {
				s.MaxSolarCapacityW = 400
				migrated = true
			}
			if s.SolarHighFraction == 0 {
				s.SolarHighFraction = 0.50
				migrated = true
			}
			if s.BatteryHighFraction == 0 {
				s.BatteryHighFraction = 0.80
				migrated = true
			}
			if s.BatteryLowFraction == 0 {
				s.BatteryLowFraction = 0.25
				migrated = true
			}
		case 2:
			// version 2: grid threshold was hardcoded before
			if s.GridHighThreshold == 0 {
				s.GridHighThreshold = GridLevelNormal
				migrated = true
			}
		case 3:
			// version 3: usage forecast from history
			if s.UsageHistoryDays == 0 {
				s.UsageHistoryDays = 7
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
