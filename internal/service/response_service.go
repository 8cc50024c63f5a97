package service

import (
	"time"

	"greenhouse_control/internal/models"
)

// LogFilter narrows the control history. Zero values mean "no bound".
type LogFilter struct {
	GreenhouseID string
	DeviceID     string
	Source       string    // "", "manual", "automation", "iot_device", "schedule"
	From         time.Time // inclusive
	To           time.Time // inclusive
	Limit        int
}

// HistoryFilter narrows sensor history.
type HistoryFilter struct {
	GreenhouseID string
	SensorType   string
	DeviceID     string
	From         time.Time
	To           time.Time
	Limit        int
}

// DeviceState is what a polling device receives from the command endpoint.
type DeviceState struct {
	DeviceID        string                 `json:"deviceId"`
	Status          models.DeviceStatus    `json:"status"`
	Intensity       float64                `json:"intensity"`
	AutoMode        bool                   `json:"autoMode"`
	AutomationRules models.AutomationRules `json:"automationRules"`
	LastUpdate      time.Time              `json:"lastUpdate"`
}

// AutomationUpdate changes a device's automation rules and, if set, its auto mode.
type AutomationUpdate struct {
	Rules    models.AutomationRules `json:"automationRules"`
	AutoMode *bool                  `json:"autoMode,omitempty"`
}
