package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGreenhouseID = "greenhouse-001"
	DefaultLocation     = "Main Greenhouse"
	WaterTankLocation   = "Water Tank"
)

// TelemetryPayload is the combined ESP32 upload. Only DeviceID is required.
type TelemetryPayload struct {
	DeviceID       string     `json:"deviceId"`
	GreenhouseID   string     `json:"greenhouseId"`
	Pincode        string     `json:"pincode,omitempty"`
	Temperature    *float64   `json:"temperature"`
	Humidity       *float64   `json:"humidity"`
	SoilMoisture   *float64   `json:"soilMoisture"`
	LightIntensity *float64   `json:"lightIntensity"`
	WaterLevel     *float64   `json:"waterLevel"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// Sample is one sensor's share of a telemetry payload. Each concrete type
// maps to exactly one SensorType.
type Sample interface {
	Kind() SensorType
	fill(r *Reading)
}

// ClimateSample is a DHT11 sample; either side may be absent.
type ClimateSample struct {
	Temperature *float64
	Humidity    *float64
}

type LightSample struct{ Intensity float64 }

type SoilSample struct{ Moisture float64 }

type WaterLevelSample struct{ Level float64 }

func (ClimateSample) Kind() SensorType    { return SensorDHT11 }
func (LightSample) Kind() SensorType      { return SensorLDR }
func (SoilSample) Kind() SensorType       { return SensorSoilMoisture }
func (WaterLevelSample) Kind() SensorType { return SensorUltrasonic }

func (s ClimateSample) fill(r *Reading) {
	r.Temperature = s.Temperature
	r.Humidity = s.Humidity
}

func (s LightSample) fill(r *Reading) {
	r.LightIntensity = Float(s.Intensity)
	r.RawValue = Float(s.Intensity)
}

func (s SoilSample) fill(r *Reading) {
	r.SoilMoisture = Float(s.Moisture)
	r.RawValue = Float(s.Moisture)
}

func (s WaterLevelSample) fill(r *Reading) {
	r.CustomValue = Float(s.Level)
	r.RawValue = Float(s.Level)
	r.Location = WaterTankLocation
}

// Samples splits the payload into one sample per sensor kind present.
// Integer channels are truncated the way the firmware reports them; a
// non-positive water level means the ultrasonic sensor saw nothing.
func (p TelemetryPayload) Samples() []Sample {
	var out []Sample
	if finite(p.Temperature) || finite(p.Humidity) {
		c := ClimateSample{}
		if finite(p.Temperature) {
			c.Temperature = Float(*p.Temperature)
		}
		if finite(p.Humidity) {
			c.Humidity = Float(*p.Humidity)
		}
		out = append(out, c)
	}
	if finite(p.SoilMoisture) {
		out = append(out, SoilSample{Moisture: math.Trunc(*p.SoilMoisture)})
	}
	if finite(p.LightIntensity) {
		out = append(out, LightSample{Intensity: math.Trunc(*p.LightIntensity)})
	}
	if finite(p.WaterLevel) && *p.WaterLevel > 0 {
		out = append(out, WaterLevelSample{Level: math.Trunc(*p.WaterLevel)})
	}
	return out
}

// NewReading builds an unsaved reading from a sample.
func NewReading(s Sample, greenhouseID, deviceID string) Reading {
	r := Reading{
		GreenhouseID: greenhouseID,
		SensorType:   s.Kind(),
		DeviceID:     deviceID,
		Location:     DefaultLocation,
	}
	s.fill(&r)
	return r
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// FlexFloat decodes a JSON number or a numeric string. Anything else
// decodes to "absent" instead of failing the whole payload.
type FlexFloat struct {
	Value *float64
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	f.Value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.Value = &v
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		f.Value = &v
	}
	return nil
}

// LegacyTelemetry is the older firmware upload where numbers may arrive as strings.
type LegacyTelemetry struct {
	DeviceID       string    `json:"deviceId"`
	GreenhouseID   string    `json:"greenhouseId"`
	Pincode        string    `json:"pincode,omitempty"`
	Temperature    FlexFloat `json:"temperature"`
	Humidity       FlexFloat `json:"humidity"`
	SoilMoisture   FlexFloat `json:"soilMoisture"`
	LightIntensity FlexFloat `json:"lightIntensity"`
	WaterLevel     FlexFloat `json:"waterLevel"`
}

// Payload adapts the legacy shape to the current one.
func (l LegacyTelemetry) Payload() TelemetryPayload {
	return TelemetryPayload{
		DeviceID:       l.DeviceID,
		GreenhouseID:   l.GreenhouseID,
		Pincode:        l.Pincode,
		Temperature:    l.Temperature.Value,
		Humidity:       l.Humidity.Value,
		SoilMoisture:   l.SoilMoisture.Value,
		LightIntensity: l.LightIntensity.Value,
		WaterLevel:     l.WaterLevel.Value,
	}
}
