package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ReadingStored(models.SensorDHT11)
	m.ReadingStored(models.SensorDHT11)
	m.IngestFailed(models.SensorLDR, apperr.Validation("light 20000 out of range"))
	m.AlertRaised(models.Alert{AlertType: models.AlertTemperatureHigh, Severity: models.SeverityHigh})
	m.CommandHandled(models.ActionTurnOn, nil)
	m.CommandHandled(models.ActionTurnOn, apperr.NotFound("device"))
	m.Fanout("sensorUpdate", 3, 1)
	m.Membership(2, 5)

	if got := testutil.ToFloat64(m.readings.WithLabelValues("DHT11")); got != 2 {
		t.Fatalf("readings = %v", got)
	}
	if got := testutil.ToFloat64(m.ingestFailures.WithLabelValues("LDR", "validation")); got != 1 {
		t.Fatalf("ingest failures = %v", got)
	}
	if got := testutil.ToFloat64(m.alerts.WithLabelValues("TEMPERATURE_HIGH", "HIGH")); got != 1 {
		t.Fatalf("alerts = %v", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("turn_on", "not_found")); got != 1 {
		t.Fatalf("failed commands = %v", got)
	}
	if got := testutil.ToFloat64(m.fanout.WithLabelValues("sensorUpdate", "dropped")); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(m.subscriptions); got != 5 {
		t.Fatalf("subscriptions = %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ReadingStored(models.SensorDHT11)
	m.IngestFailed(models.SensorDHT11, errors.New("x"))
	m.Fanout("x", 1, 1)
	m.Membership(1, 1)
	m.BridgeMessage("in", "ok")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ReadingStored(models.SensorSoilMoisture)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `greenhouse_readings_stored_total{sensor_type="SOIL_MOISTURE"} 1`) {
		t.Fatalf("metric missing from output:\n%s", rec.Body.String())
	}
}
