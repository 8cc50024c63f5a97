// Package mqttbridge connects the dispatcher to devices that speak MQTT
// instead of HTTP. Inbound telemetry and status reports are fed to the same
// ingest path the REST endpoints use; applied commands are published back to
// the device's command topic.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

const (
	KindTelemetry = "telemetry"
	KindStatus    = "status"

	connectRetries = 4
	publishWait    = 5 * time.Second
	handleTimeout  = 10 * time.Second
	disconnectMs   = 250
)

// ErrPublishTimeout is returned when the broker does not ack a command in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Telemetry is the ingest side of the dispatcher.
type Telemetry interface {
	HandleIngest(ctx context.Context, p models.TelemetryPayload) (models.IngestResult, error)
	ReportStatus(ctx context.Context, rep models.StatusReport) (models.Device, error)
}

// Recorder counts bridge traffic. *metrics.Metrics implements it.
type Recorder interface {
	BridgeMessage(direction, result string)
}

type nopRecorder struct{}

func (nopRecorder) BridgeMessage(string, string) {}

// Connect dials the broker, retrying with exponential backoff.
func Connect(cfg Config, log *logger.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "error", err)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnw("mqtt_connect_failed", "broker", cfg.Broker, "error", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, connectRetries))
	if err != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", cfg.Broker, err)
	}
	log.Infow("mqtt_connected", "broker", cfg.Broker)
	return client, nil
}

type Bridge struct {
	client mqtt.Client
	cfg    Config
	cb     *gobreaker.CircuitBreaker
	rec    Recorder
	log    *logger.Logger
}

func New(client mqtt.Client, cfg Config, rec Recorder, log *logger.Logger) *Bridge {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "greenhouse"
	}
	return &Bridge{
		client: client,
		cfg:    cfg,
		cb:     newBreaker("mqtt-commands", 5, 30*time.Second, time.Minute),
		rec:    rec,
		log:    log,
	}
}

func newBreaker(name string, fails uint32, open, interval time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
	})
}

// Start subscribes to the telemetry and status topics of every greenhouse.
func (b *Bridge) Start(t Telemetry) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		b.handle(t, msg.Topic(), msg.Payload())
	}
	for _, kind := range []string{KindTelemetry, KindStatus} {
		topic := b.cfg.TopicPrefix + "/+/" + kind
		if token := b.client.Subscribe(topic, b.cfg.QoS, handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		b.log.Infow("mqtt_subscribed", "topic", topic)
	}
	return nil
}

func (b *Bridge) Close() {
	if b.client.IsConnected() {
		b.client.Disconnect(disconnectMs)
	}
}

func (b *Bridge) handle(t Telemetry, topic string, payload []byte) {
	gh, kind, ok := ParseTopic(b.cfg.TopicPrefix, topic)
	if !ok {
		b.rec.BridgeMessage("in", "ignored")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var err error
	switch kind {
	case KindTelemetry:
		err = handleTelemetry(ctx, t, gh, payload)
	case KindStatus:
		err = handleStatus(ctx, t, gh, payload)
	}
	if err != nil {
		b.rec.BridgeMessage("in", "error")
		b.log.Warnw("mqtt_message_rejected", "topic", topic, "error", err)
		return
	}
	b.rec.BridgeMessage("in", "ok")
}

func handleTelemetry(ctx context.Context, t Telemetry, gh string, payload []byte) error {
	var p models.TelemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode telemetry: %w", err)
	}
	if p.GreenhouseID == "" {
		p.GreenhouseID = gh
	}
	_, err := t.HandleIngest(ctx, p)
	return err
}

func handleStatus(ctx context.Context, t Telemetry, gh string, payload []byte) error {
	var rep models.StatusReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	if rep.GreenhouseID == "" {
		rep.GreenhouseID = gh
	}
	_, err := t.ReportStatus(ctx, rep)
	return err
}

// ParseTopic splits "<prefix>/<greenhouse>/<kind>". Unknown kinds and empty
// greenhouse segments are rejected.
func ParseTopic(prefix, topic string) (greenhouseID, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	switch parts[1] {
	case KindTelemetry, KindStatus:
		return parts[0], parts[1], true
	}
	return "", "", false
}

// CommandTopic is where a device listens for commands.
func CommandTopic(prefix, greenhouseID, deviceID string) string {
	return prefix + "/" + greenhouseID + "/commands/" + deviceID
}

// CommandMessage is the body published to a device after a command is applied.
type CommandMessage struct {
	DeviceID  string              `json:"deviceId"`
	Action    models.Action       `json:"action"`
	Status    models.DeviceStatus `json:"status"`
	Intensity float64             `json:"intensity"`
	AutoMode  bool                `json:"autoMode"`
	Timestamp time.Time           `json:"timestamp"`
}

func NewCommandMessage(d models.Device, action models.Action, at time.Time) CommandMessage {
	return CommandMessage{
		DeviceID:  d.DeviceID,
		Action:    action,
		Status:    d.Status,
		Intensity: d.Intensity,
		AutoMode:  d.AutoMode,
		Timestamp: at.UTC(),
	}
}

// PublishCommand sends the device's new state to its command topic. While
// the breaker is open the publish is dropped and gobreaker's error returned.
func (b *Bridge) PublishCommand(ctx context.Context, d models.Device, action models.Action) error {
	body, err := json.Marshal(NewCommandMessage(d, action, time.Now()))
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	topic := CommandTopic(b.cfg.TopicPrefix, d.GreenhouseID, d.DeviceID)

	_, err = b.cb.Execute(func() (interface{}, error) {
		token := b.client.Publish(topic, b.cfg.QoS, false, body)
		select {
		case <-token.Done():
			return nil, token.Error()
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(publishWait):
			return nil, ErrPublishTimeout
		}
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.rec.BridgeMessage("out", "dropped")
	case err != nil:
		b.rec.BridgeMessage("out", "error")
	default:
		b.rec.BridgeMessage("out", "ok")
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
