package models

import (
	"time"
)

type AlertType string

const (
	AlertTemperatureHigh      AlertType = "TEMPERATURE_HIGH"
	AlertTemperatureLow       AlertType = "TEMPERATURE_LOW"
	AlertHumidityHigh         AlertType = "HUMIDITY_HIGH"
	AlertHumidityLow          AlertType = "HUMIDITY_LOW"
	AlertSoilMoistureLow      AlertType = "SOIL_MOISTURE_LOW"
	AlertLightLevelLow        AlertType = "LIGHT_LEVEL_LOW"
	AlertWaterLevelLow        AlertType = "WATER_LEVEL_LOW"
	AlertDeviceMalfunction    AlertType = "DEVICE_MALFUNCTION"
	AlertPowerConsumptionHigh AlertType = "POWER_CONSUMPTION_HIGH"
	AlertSensorOffline        AlertType = "SENSOR_OFFLINE"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTemperatureHigh, AlertTemperatureLow, AlertHumidityHigh, AlertHumidityLow,
		AlertSoilMoistureLow, AlertLightLevelLow, AlertWaterLevelLow,
		AlertDeviceMalfunction, AlertPowerConsumptionHigh, AlertSensorOffline:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Alert is a recorded threshold violation or malfunction.
// ResolvedAt is non-nil iff IsResolved.
type Alert struct {
	ID             string     `json:"id"`
	GreenhouseID   string     `json:"greenhouseId"`
	AlertType      AlertType  `json:"alertType"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	CurrentValue   float64    `json:"currentValue"`
	ThresholdValue float64    `json:"thresholdValue"`
	SensorType     SensorType `json:"sensorType"`
	DeviceID       string     `json:"deviceId,omitempty"`
	IsResolved     bool       `json:"isResolved"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy     string     `json:"resolvedBy,omitempty"`
	ActionTaken    string     `json:"actionTaken,omitempty"`
	AutoResolved   bool       `json:"autoResolved"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AlertIntent is an evaluator's proposal to create an Alert.
type AlertIntent struct {
	GreenhouseID   string     `json:"greenhouseId"`
	AlertType      AlertType  `json:"alertType"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	CurrentValue   float64    `json:"currentValue"`
	ThresholdValue float64    `json:"thresholdValue"`
	SensorType     SensorType `json:"sensorType"`
	DeviceID       string     `json:"deviceId,omitempty"`
}

// NewAlert materializes the intent as an unresolved alert.
func (i AlertIntent) NewAlert(id string, at time.Time) Alert {
	return Alert{
		ID:             id,
		GreenhouseID:   i.GreenhouseID,
		AlertType:      i.AlertType,
		Severity:       i.Severity,
		Message:        i.Message,
		CurrentValue:   i.CurrentValue,
		ThresholdValue: i.ThresholdValue,
		SensorType:     i.SensorType,
		DeviceID:       i.DeviceID,
		CreatedAt:      at,
	}
}

// MalfunctionSignal is a device-reported fault, evaluated into a DEVICE_MALFUNCTION alert.
type MalfunctionSignal struct {
	GreenhouseID string
	DeviceID     string
	DeviceName   string
	Fault        string
}

// AlertStats summarizes alerts of one greenhouse over a window.
type AlertStats struct {
	Total      int               `json:"total"`
	Active     int               `json:"active"`
	Resolved   int               `json:"resolved"`
	BySeverity map[Severity]int  `json:"bySeverity"`
	ByType     map[AlertType]int `json:"byType"`
	Since      time.Time         `json:"since"`
}
