package models

import "time"

// Bound holds an optional high/low pair. A nil side never alerts.
type Bound struct {
	High *float64 `json:"high"`
	Low  *float64 `json:"low"`
}

type LowBound struct {
	Low *float64 `json:"low"`
}

// Thresholds is the nullable alert configuration for one greenhouse.
// The zero value means "nothing configured".
type Thresholds struct {
	Temperature  Bound    `json:"temperature"`
	Humidity     Bound    `json:"humidity"`
	SoilMoisture LowBound `json:"soilMoisture"`
	LightLevel   LowBound `json:"lightLevel"`
}

// Settings is the per-user-per-greenhouse record holding thresholds.
type Settings struct {
	UserID          int        `json:"userId"`
	GreenhouseID    string     `json:"greenhouseId"`
	AlertThresholds Thresholds `json:"alertThresholds"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
