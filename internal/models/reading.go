package models

import "time"

// SensorType identifies the physical sensor a reading came from.
type SensorType string

const (
	SensorDHT11        SensorType = "DHT11"         // temperature + humidity
	SensorLDR          SensorType = "LDR"           // light intensity, raw ADC
	SensorSoilMoisture SensorType = "SOIL_MOISTURE" // raw ADC
	SensorUltrasonic   SensorType = "ULTRASONIC"    // water level, cm
	SensorDevice       SensorType = "DEVICE"        // actuator-originated alerts
)

// Valid reports whether s is one of the reading sensor types.
func (s SensorType) Valid() bool {
	switch s {
	case SensorDHT11, SensorLDR, SensorSoilMoisture, SensorUltrasonic:
		return true
	}
	return false
}

// Reading is one persisted sensor sample. Immutable once stored.
type Reading struct {
	ID             string     `json:"id"`
	GreenhouseID   string     `json:"greenhouseId"`
	SensorType     SensorType `json:"sensorType"`
	DeviceID       string     `json:"deviceId"`
	Location       string     `json:"location"`
	Temperature    *float64   `json:"temperature,omitempty"`    // °C
	Humidity       *float64   `json:"humidity,omitempty"`       // %
	LightIntensity *float64   `json:"lightIntensity,omitempty"` // raw ADC
	SoilMoisture   *float64   `json:"soilMoisture,omitempty"`   // raw ADC
	CustomValue    *float64   `json:"customValue,omitempty"`    // water level, cm
	RawValue       *float64   `json:"rawValue,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Field is one measured quantity of a reading, as pushed in sensorUpdate events.
type Field struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Fields lists the measured quantities present on the reading.
func (r Reading) Fields() []Field {
	var out []Field
	if r.Temperature != nil {
		out = append(out, Field{Type: "temperature", Value: *r.Temperature, Unit: "°C"})
	}
	if r.Humidity != nil {
		out = append(out, Field{Type: "humidity", Value: *r.Humidity, Unit: "%"})
	}
	if r.SoilMoisture != nil {
		out = append(out, Field{Type: "soilMoisture", Value: *r.SoilMoisture, Unit: "raw"})
	}
	if r.LightIntensity != nil {
		out = append(out, Field{Type: "lightLevel", Value: *r.LightIntensity, Unit: "lux"})
	}
	if r.SensorType == SensorUltrasonic && r.CustomValue != nil {
		out = append(out, Field{Type: "waterLevel", Value: *r.CustomValue, Unit: "cm"})
	}
	return out
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 { return &v }
