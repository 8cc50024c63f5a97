// Package metrics exposes Prometheus counters for ingest, alerts, commands
// and room fan-out. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "greenhouse"

type Metrics struct {
	reg *prometheus.Registry

	readings       *prometheus.CounterVec
	ingestFailures *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	commands       *prometheus.CounterVec
	fanout         *prometheus.CounterVec
	bridge         *prometheus.CounterVec
	rooms          prometheus.Gauge
	subscriptions  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_stored_total",
			Help:      "Sensor readings persisted, by sensor type.",
		}, []string{"sensor_type"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Sensor readings rejected or not stored, by sensor type and error kind.",
		}, []string{"sensor_type", "kind"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts persisted, by alert type and severity.",
		}, []string{"alert_type", "severity"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Device commands handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		fanout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_total",
			Help:      "Room events handed to subscribers, by event and result.",
		}, []string{"event", "result"}),
		bridge: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "MQTT bridge messages, by direction and result.",
		}, []string{"direction", "result"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Greenhouse rooms with at least one subscriber.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_subscriptions",
			Help:      "Subscriber memberships across all rooms.",
		}),
	}
	m.reg.MustRegister(
		m.readings, m.ingestFailures, m.alerts, m.commands, m.fanout, m.bridge,
		m.rooms, m.subscriptions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ReadingStored(t models.SensorType) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) IngestFailed(t models.SensorType, err error) {
	if m == nil {
		return
	}
	m.ingestFailures.WithLabelValues(string(t), kindLabel(err)).Inc()
}

func (m *Metrics) AlertRaised(a models.Alert) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(a.AlertType), string(a.Severity)).Inc()
}

// CommandHandled counts a device command; err nil means applied.
func (m *Metrics) CommandHandled(action models.Action, err error) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = kindLabel(err)
	}
	m.commands.WithLabelValues(string(action), outcome).Inc()
}

// Fanout implements realtime.Observer.
func (m *Metrics) Fanout(event string, delivered, dropped int) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.fanout.WithLabelValues(event, "delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		m.fanout.WithLabelValues(event, "dropped").Add(float64(dropped))
	}
}

// Membership implements realtime.Observer.
func (m *Metrics) Membership(rooms, subscriptions int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(rooms))
	m.subscriptions.Set(float64(subscriptions))
}

func (m *Metrics) BridgeMessage(direction, result string) {
	if m == nil {
		return
	}
	m.bridge.WithLabelValues(direction, result).Inc()
}

func kindLabel(err error) string {
	switch apperr.Kind(err) {
	case apperr.ErrBadRequest:
		return "bad_request"
	case apperr.ErrValidation:
		return "validation"
	case apperr.ErrNotFound:
		return "not_found"
	case apperr.ErrInvalidAction:
		return "invalid_action"
	case apperr.ErrAlreadyResolved:
		return "already_resolved"
	case apperr.ErrUnauthorized, apperr.ErrForbidden:
		return "denied"
	default:
		return "internal"
	}
}
