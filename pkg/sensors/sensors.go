package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// ErrNoData is returned when a reader has nothing (recent) to report.
var ErrNoData = errors.New("no sensor data")

// Reader returns the current real-time sensor values.
type Reader interface {
	Read(ctx context.Context) (types.SensorSnapshot, error)
}

// Starter is implemented by readers that need a background connection.
// Start blocks until the context is done.
type Starter interface {
	Start(ctx context.Context) error
}

// Static is a Reader that always returns the same snapshot with the current
// time. It is meant for dry runs and tests.
type Static struct {
	mu       sync.Mutex
	snapshot types.SensorSnapshot
}

// NewStatic returns a Static reader for the snapshot.
func NewStatic(snapshot types.SensorSnapshot) *Static {
	return &Static{snapshot: snapshot}
}

// Set replaces the snapshot returned by Read.
func (s *Static) Set(snapshot types.SensorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// Read implements Reader.
func (s *Static) Read(context.Context) (types.SensorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot
	snap.Timestamp = time.Now()
	return snap, nil
}

// Configured sets up the sensor reader based on flags.
func Configured() Reader {
	provider := lflag.String("sensors-provider", "mqtt", "Sensor provider to use (available: mqtt, static)")
	var static struct {
		SolarW          float64 `json:"solarW"`
		GridW           float64 `json:"gridW"`
		GridDemandLevel int     `json:"gridDemandLevel"`
	}
	lflag.JSON(&static, "sensors-static", static, "Snapshot returned by the static sensor provider as JSON")

	r := &configuredReader{}

	m := configuredMQTT()

	lflag.Do(func() {
		switch *provider {
		case "mqtt":
			if err := m.Validate(); err != nil {
				panic(fmt.Sprintf("mqtt validation failed: %v", err))
			}
			r.Reader = m
		case "static":
			r.Reader = NewStatic(types.SensorSnapshot{
				SolarW:          static.SolarW,
				GridW:           static.GridW,
				GridDemandLevel: static.GridDemandLevel,
			})
		default:
			panic(fmt.Sprintf("unknown sensors provider: %s", *provider))
		}
	})

	return r
}

type configuredReader struct{ Reader }

// Start runs the background connection of the underlying reader, if it has
// one.
func (c *configuredReader) Start(ctx context.Context) error {
	return Start(ctx, c.Reader)
}

// Start runs the background connection of r, if it has one. It blocks until
// the context is done.
func Start(ctx context.Context, r Reader) error {
	if s, ok := r.(Starter); ok {
		return s.Start(ctx)
	}
	<-ctx.Done()
	return nil
}
