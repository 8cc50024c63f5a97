// Package tsdb mirrors stored readings into InfluxDB for long-range charts.
// SQLite stays the system of record; a failed mirror write is only logged.
package tsdb

import (
	"sync/atomic"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

const measurement = "sensor_reading"

type Mirror struct {
	api    api.WriteAPI
	log    *logger.Logger
	failed atomic.Int64
}

// NewMirror wraps a non-blocking WriteAPI and drains its async error channel.
func NewMirror(w api.WriteAPI, log *logger.Logger) *Mirror {
	if log == nil {
		log = logger.Nop()
	}
	m := &Mirror{api: w, log: log}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				m.failed.Add(1)
				m.log.Warnw("influx_write_failed", "error", err)
			}
		}
	}()
	return m
}

// Mirror queues r for the next batch. Readings without a measured field are skipped.
func (m *Mirror) Mirror(r models.Reading) {
	p, ok := ReadingPoint(r)
	if !ok {
		return
	}
	m.api.WritePoint(p)
}

// Failed reports how many async writes the client gave up on.
func (m *Mirror) Failed() int64 {
	return m.failed.Load()
}

func (m *Mirror) Flush() {
	m.api.Flush()
}

// ReadingPoint turns a reading into one point tagged by greenhouse, device
// and sensor. Each measured quantity becomes a field.
func ReadingPoint(r models.Reading) (*write.Point, bool) {
	fields := make(map[string]interface{})
	for _, f := range r.Fields() {
		fields[f.Type] = f.Value
	}
	if len(fields) == 0 {
		return nil, false
	}
	if r.RawValue != nil {
		fields["raw"] = *r.RawValue
	}

	tags := map[string]string{
		"greenhouse_id": r.GreenhouseID,
		"device_id":     r.DeviceID,
		"sensor_type":   string(r.SensorType),
	}
	if r.Location != "" {
		tags["location"] = r.Location
	}
	return influxdb2.NewPoint(measurement, tags, fields, r.Timestamp), true
}
