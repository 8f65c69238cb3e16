package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/controller"
	"github.com/balkonsolar/balkonsolar/pkg/forecast"
	"github.com/balkonsolar/balkonsolar/pkg/storage"
	"github.com/balkonsolar/balkonsolar/pkg/types"
)

var errQuit = errors.New("quit")

// advisor answers questions about the stored system state without changing
// anything.
type advisor struct {
	db         storage.Database
	controller *controller.Controller
	out        io.Writer
	now        func() time.Time
}

func newAdvisor(db storage.Database, out io.Writer) *advisor {
	return &advisor{
		db:         db,
		controller: controller.NewController(),
		out:        out,
		now:        time.Now,
	}
}

func (a *advisor) settings(ctx context.Context) (types.Settings, error) {
	settings, version, err := a.db.GetSettings(ctx)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	migrated, _, err := types.MigrateSettings(settings, version)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to migrate settings: %w", err)
	}
	return migrated, nil
}

func (a *advisor) battery(ctx context.Context) (types.BatteryState, error) {
	state, err := a.db.GetBatteryState(ctx)
	if err != nil {
		return types.BatteryState{}, fmt.Errorf("failed to get battery state: %w", err)
	}
	return state, nil
}

func (a *advisor) handle(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "classify":
		return a.classify(ctx, parts[1:])
	case "status":
		return a.status(ctx)
	case "schedule":
		return a.schedule(ctx)
	case "help":
		fmt.Fprintln(a.out, "Commands:")
		fmt.Fprintln(a.out, "  classify <grid level> <solar W> <battery %> - Recommend a dispatch state")
		fmt.Fprintln(a.out, "  status                                      - Show the battery and the last dispatch")
		fmt.Fprintln(a.out, "  schedule                                    - Plan the next 24 hours from the stored forecast")
		fmt.Fprintln(a.out, "  help                                        - Show this help")
		fmt.Fprintln(a.out, "  quit                                        - Exit")
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s (try 'help')", parts[0])
	}
}

func (a *advisor) classify(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: classify <grid level> <solar W> <battery %>")
	}
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid grid level %q: %w", args[0], err)
	}
	solarW, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid solar production %q: %w", args[1], err)
	}
	percent, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid battery percentage %q: %w", args[2], err)
	}

	settings, err := a.settings(ctx)
	if err != nil {
		return err
	}
	state := a.controller.Classify(ctx, types.DispatchInputs{
		GridDemandLevel:    level,
		SolarProductionW:   solarW,
		BatteryPercentFull: percent,
	}, controller.NewClassifierConfig(settings))

	fmt.Fprintf(a.out, "Solar Production: %.0fW / %.0fW\n", solarW, settings.MaxSolarCapacityW)
	fmt.Fprintf(a.out, "Battery Charge: %.1f%%\n", percent)
	fmt.Fprintf(a.out, "Grid Demand: %d\n", level)
	fmt.Fprintf(a.out, "Optimal state: %s (%s)\n", state.Description(), state)
	return nil
}

func (a *advisor) status(ctx context.Context) error {
	state, err := a.battery(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Battery Charge: %.2f / %.2fkWh (%.1f%%)\n", state.CurrentChargeKWH, state.CapacityKWH, state.PercentFull())

	last, err := a.db.GetLatestDispatchRecord(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest dispatch record: %w", err)
	}
	if last == nil {
		fmt.Fprintln(a.out, "No dispatch recorded yet")
		return nil
	}
	fmt.Fprintf(a.out, "Last dispatch at %s: %s\n", last.Timestamp.Format(time.RFC3339), last.Description)
	fmt.Fprintf(a.out, "Solar Production: %.0fW, Grid: %.0fW, Grid Demand: %d\n", last.Sensors.SolarW, last.Sensors.GridW, last.Sensors.GridDemandLevel)
	return nil
}

func (a *advisor) schedule(ctx context.Context) error {
	settings, err := a.settings(ctx)
	if err != nil {
		return err
	}
	state, err := a.battery(ctx)
	if err != nil {
		return err
	}
	table, err := forecast.Load(ctx, a.db, a.now(), settings)
	if err != nil {
		return err
	}

	res := a.controller.ScheduleResult(ctx, table, state.DeficitKWH())
	fmt.Fprintf(a.out, "Battery deficit: %.0fWh, forecast surplus: %.0fWh\n", state.DeficitKWH()*1000, table.TotalSurplusWH())
	for _, e := range res.Entries {
		fmt.Fprintf(a.out, "%s  grid %d  surplus %6.0fWh  battery %6.0fWh  %s\n",
			e.Timestamp.Format("15:04"), e.GridDemandLevel, e.SurplusWH, e.BatteryInputWH, e.SuggestedState.Description())
	}
	if res.RemainingWH > 0 {
		fmt.Fprintf(a.out, "Forecast surplus leaves %.0fWh of the deficit uncovered\n", res.RemainingWH)
	}
	return nil
}
