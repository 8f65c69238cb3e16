package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/forecast"
	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/storage"
	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	solarPeakWH = 400.0
	solarPeakAt = 13.0
)

// solarWH is a bell curve around midday with some cloud jitter.
func solarWH(rng *rand.Rand, hour int) float64 {
	if hour < 6 || hour > 20 {
		return 0
	}
	dist := math.Abs(float64(hour) - solarPeakAt)
	clouds := 0.7 + rng.Float64()*0.3
	return math.Round(solarPeakWH * math.Exp(-(dist*dist)/10.0) * clouds)
}

// usageWH is a household baseline with breakfast and evening peaks.
func usageWH(rng *rand.Rand, hour int) float64 {
	wh := 50 + rng.Float64()*60
	if hour >= 7 && hour < 9 {
		wh += 80 // Breakfast
	} else if hour >= 18 && hour < 22 {
		wh += 120 // Evening
	}
	return math.Round(wh)
}

// gridIntervals mimics a StromGedacht day: green overnight, orange in the
// morning and red around the evening peak.
func gridIntervals(rng *rand.Rand, day time.Time) []types.GridInterval {
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	evening := types.StromGedachtOrange
	if rng.Float64() < 0.3 {
		evening = types.StromGedachtRed
	}
	return []types.GridInterval{
		{From: at(0), To: at(6), State: types.StromGedachtGreen},
		{From: at(6), To: at(10), State: types.StromGedachtOrange},
		{From: at(10), To: at(16), State: types.StromGedachtSuperGreen},
		{From: at(16), To: at(17), State: types.StromGedachtGreen},
		{From: at(17), To: at(21), State: evening},
		{From: at(21), To: at(24), State: types.StromGedachtGreen},
	}
}

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	historyDur := lflag.Duration("seed-history", 7*24*time.Hour, "How much consumption history to write")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now()
	today := now.Truncate(24 * time.Hour)

	// forecasts for today and tomorrow so the next 24 hours are always covered
	var solar []types.SolarSample
	var intervals []types.GridInterval
	for d := 0; d < 2; d++ {
		day := today.AddDate(0, 0, d)
		for h := 0; h < forecast.Hours; h++ {
			solar = append(solar, types.SolarSample{
				Timestamp: day.Add(time.Duration(h) * time.Hour),
				WattHours: solarWH(rng, h),
			})
		}
		intervals = append(intervals, gridIntervals(rng, day)...)
	}
	grid := forecast.ExpandGridIntervals(intervals)

	if err := s.UpsertSolarForecast(ctx, solar); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed solar forecast", "error", err)
		os.Exit(1)
	}
	if err := s.UpsertGridForecast(ctx, grid); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed grid forecast", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d solar and %d grid forecast hours from %s\n", len(solar), len(grid), today.Format(time.DateOnly))

	var history []types.ConsumptionStats
	for t := now.Add(-*historyDur).Truncate(time.Hour); t.Before(now.Truncate(time.Hour)); t = t.Add(time.Hour) {
		history = append(history, types.ConsumptionStats{
			TSHourStart: t,
			HomeWH:      usageWH(rng, t.Hour()),
			SolarWH:     solarWH(rng, t.Hour()),
		})
	}
	if err := s.UpsertConsumption(ctx, history); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed consumption history", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d hours of consumption history\n", len(history))

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
