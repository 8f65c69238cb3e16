package forecast

import (
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
)

// ExpandGridIntervals turns StromGedacht style forecast intervals into one grid
// sample per full hour. Only hours that fit completely inside an interval are
// produced: the start is moved up to the next hour unless it is already on the
// hour and the hour containing the end is excluded. The State of each interval
// is converted with types.GridLevelFromStromGedacht.
func ExpandGridIntervals(intervals []types.GridInterval) []types.GridSample {
	var samples []types.GridSample
	for _, in := range intervals {
		hour := in.From.Truncate(time.Hour)
		if !hour.Equal(in.From) {
			hour = hour.Add(time.Hour)
		}
		endHour := in.To.Truncate(time.Hour)
		level := types.GridLevelFromStromGedacht(in.State)
		for ; hour.Before(endHour); hour = hour.Add(time.Hour) {
			samples = append(samples, types.GridSample{
				Timestamp: hour,
				Level:     level,
			})
		}
	}
	return samples
}
