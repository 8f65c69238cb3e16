package sensors

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/types"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"
)

type reading struct {
	value float64
	at    time.Time
}

// MQTTReader keeps the latest values published on Home Assistant state topics.
type MQTTReader struct {
	broker         string
	username       string
	password       string
	clientID       string
	solarTopic     string
	gridTopic      string
	gridStateTopic string
	maxAge         time.Duration

	now func() time.Time

	mu       sync.Mutex
	readings map[string]reading
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func configuredMQTT() *MQTTReader {
	broker := lflag.String("mqtt-broker", envOr("MQTT_BROKER", ""), "MQTT broker address as host or host:port")
	username := lflag.String("mqtt-username", envOr("MQTT_USERNAME", ""), "MQTT username")
	password := lflag.String("mqtt-password", envOr("MQTT_PASSWORD", ""), "MQTT password")
	clientID := lflag.String("mqtt-client-id", "balkonsolar", "MQTT client ID")
	solarTopic := lflag.String("mqtt-solar-topic", "homeassistant/sensor/8cbfea97f1ec_power/state", "Topic publishing the solar production in W")
	gridTopic := lflag.String("mqtt-grid-topic", "homeassistant/sensor/shellypro3em63_fce8c0dad39c_total_active_power/state", "Topic publishing the grid power in W, negative when exporting")
	gridStateTopic := lflag.String("mqtt-grid-state-topic", "homeassistant/sensor/stromgedacht_state/state", "Topic publishing the StromGedacht region state")
	maxAge := lflag.Duration("mqtt-max-age", 5*time.Minute, "Readings older than this are considered missing, 0 disables")

	m := newMQTTReader()
	lflag.Do(func() {
		m.broker = *broker
		m.username = *username
		m.password = *password
		m.clientID = *clientID
		m.solarTopic = *solarTopic
		m.gridTopic = *gridTopic
		m.gridStateTopic = *gridStateTopic
		m.maxAge = *maxAge
	})
	return m
}

func newMQTTReader() *MQTTReader {
	return &MQTTReader{
		now:      time.Now,
		readings: make(map[string]reading),
	}
}

// Validate checks if the reader is properly configured.
func (m *MQTTReader) Validate() error {
	if m.broker == "" {
		return fmt.Errorf("mqtt broker must be set")
	}
	if m.solarTopic == "" || m.gridTopic == "" {
		return fmt.Errorf("mqtt solar and grid topics must be set")
	}
	return nil
}

func (m *MQTTReader) brokerURL() string {
	if strings.Contains(m.broker, "://") {
		return m.broker
	}
	if strings.Contains(m.broker, ":") {
		return "tcp://" + m.broker
	}
	return fmt.Sprintf("tcp://%s:1883", m.broker)
}

func (m *MQTTReader) topics() []string {
	topics := []string{m.solarTopic, m.gridTopic}
	if m.gridStateTopic != "" {
		topics = append(topics, m.gridStateTopic)
	}
	return topics
}

// Start connects to the broker and subscribes to the configured topics. It
// blocks until the context is done.
func (m *MQTTReader) Start(ctx context.Context) error {
	l := log.Ctx(ctx)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.brokerURL())
	opts.SetClientID(m.clientID)
	opts.SetUsername(m.username)
	opts.SetPassword(m.password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		l.WarnContext(ctx, "mqtt connection lost", slog.Any("error", err))
	})

	// subscriptions are redone on every reconnect
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		l.InfoContext(ctx, "connected to mqtt broker", slog.String("broker", m.broker))
		for _, topic := range m.topics() {
			token := client.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
				m.handleMessage(ctx, msg.Topic(), string(msg.Payload()))
			})
			if token.Wait() && token.Error() != nil {
				l.ErrorContext(ctx, "failed to subscribe to topic", slog.String("topic", topic), slog.Any("error", token.Error()))
			} else {
				l.DebugContext(ctx, "subscribed to topic", slog.String("topic", topic))
			}
		}
	})

	client := mqtt.NewClient(opts)
	l.InfoContext(ctx, "connecting to mqtt broker", slog.String("broker", m.broker))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", m.broker, token.Error())
	}

	<-ctx.Done()

	if client.IsConnected() {
		client.Disconnect(250)
		l.InfoContext(ctx, "disconnected from mqtt broker")
	}
	return nil
}

func isUnavailable(payload string) bool {
	switch strings.ToLower(payload) {
	case "", "unavailable", "unknown", "undefined", "none":
		return true
	}
	return false
}

// parseGridState accepts a StromGedacht state either as its number or as its
// name and returns the grid demand level.
func parseGridState(payload string) (int, error) {
	switch strings.ToLower(payload) {
	case "supergreen":
		return types.GridLevelFromStromGedacht(types.StromGedachtSuperGreen), nil
	case "green":
		return types.GridLevelFromStromGedacht(types.StromGedachtGreen), nil
	case "orange":
		return types.GridLevelFromStromGedacht(types.StromGedachtOrange), nil
	case "red":
		return types.GridLevelFromStromGedacht(types.StromGedachtRed), nil
	}
	state, err := strconv.Atoi(payload)
	if err != nil {
		return 0, fmt.Errorf("invalid grid state %q: %w", payload, err)
	}
	return types.GridLevelFromStromGedacht(state), nil
}

// handleMessage records the payload of a state topic. Unavailable sensors
// read as 0, unparsable or non-finite values keep the previous reading.
func (m *MQTTReader) handleMessage(ctx context.Context, topic, payload string) {
	payload = strings.TrimSpace(payload)

	var value float64
	switch {
	case isUnavailable(payload):
		log.Ctx(ctx).DebugContext(ctx, "sensor unavailable", slog.String("topic", topic))
	case topic == m.gridStateTopic:
		level, err := parseGridState(payload)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse grid state", slog.String("topic", topic), slog.Any("error", err))
			return
		}
		value = float64(level)
	default:
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse sensor value", slog.String("topic", topic), slog.String("payload", payload))
			return
		}
		value = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings[topic] = reading{value: value, at: m.now()}
}

func (m *MQTTReader) latest(topic string, now time.Time) (reading, bool) {
	r, ok := m.readings[topic]
	if !ok {
		return reading{}, false
	}
	if m.maxAge > 0 && now.Sub(r.at) > m.maxAge {
		return reading{}, false
	}
	return r, true
}

// Read implements Reader. Solar and grid power are required, a missing grid
// state reads as low demand.
func (m *MQTTReader) Read(ctx context.Context) (types.SensorSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	solar, ok := m.latest(m.solarTopic, now)
	if !ok {
		return types.SensorSnapshot{}, fmt.Errorf("solar topic %s: %w", m.solarTopic, ErrNoData)
	}
	grid, ok := m.latest(m.gridTopic, now)
	if !ok {
		return types.SensorSnapshot{}, fmt.Errorf("grid topic %s: %w", m.gridTopic, ErrNoData)
	}
	level := types.GridLevelLow
	if state, ok := m.latest(m.gridStateTopic, now); ok {
		level = int(state.value)
	}

	return types.SensorSnapshot{
		Timestamp:       now,
		SolarW:          solar.value,
		GridW:           grid.value,
		GridDemandLevel: level,
	}, nil
}
