package battery

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured registers the battery flag and returns the EnergyStore built
// from it once flags are parsed. An invalid config panics during
// lflag.Configure.
func Configured() *EnergyStore {
	cfg := DefaultConfig()
	lflag.JSON(&cfg, "battery", cfg, "Battery as JSON with capacityKWH, initialChargeKWH, chargeEfficiency and dischargeEfficiency")

	b := &EnergyStore{}
	lflag.Do(func() {
		store, err := New(cfg)
		if err != nil {
			panic(fmt.Sprintf("battery config failed: %v", err))
		}
		*b = *store
	})
	return b
}
