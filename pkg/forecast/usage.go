package forecast

import (
	"log/slog"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// UsageProfile is the expected household usage (in Wh) by hour of day.
type UsageProfile map[int]float64

// At returns the expected usage for the hour containing ts. A nil profile
// expects no usage.
func (p UsageProfile) At(ts time.Time) float64 {
	return p[ts.Hour()]
}

// UsageProfileFromHistory averages the consumption history by hour of day.
// When ignoreOverMultiple is positive, an hour of day with at least 3 points
// drops a point whose usage is over that multiple of the average of the other
// points, but only if it is the only such point.
func UsageProfileFromHistory(history []types.ConsumptionStats, ignoreOverMultiple float64) UsageProfile {
	hourly := make(map[int][]float64)
	for _, h := range history {
		if h.TSHourStart.IsZero() {
			continue
		}
		hour := h.TSHourStart.Hour()
		hourly[hour] = append(hourly[hour], max(0, h.HomeWH))
	}

	profile := make(UsageProfile, len(hourly))
	for hour, points := range hourly {
		valid := points
		if len(points) >= 3 && ignoreOverMultiple > 0 {
			var sum float64
			for _, p := range points {
				sum += p
			}
			outlier := -1
			for i, p := range points {
				avgOthers := (sum - p) / float64(len(points)-1)
				if p > avgOthers*ignoreOverMultiple {
					if outlier >= 0 {
						// more than one, keep them all
						outlier = -1
						break
					}
					outlier = i
				}
			}
			if outlier >= 0 {
				slog.Debug("ignoring outlier usage point",
					slog.Int("hour", hour),
					slog.Float64("usageWH", points[outlier]),
				)
				valid = make([]float64, 0, len(points)-1)
				valid = append(valid, points[:outlier]...)
				valid = append(valid, points[outlier+1:]...)
			}
		}

		var sum float64
		for _, p := range valid {
			sum += p
		}
		profile[hour] = sum / float64(len(valid))
	}
	return profile
}
