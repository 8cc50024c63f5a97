package models

import "time"

type DeviceType string

const (
	DeviceFan           DeviceType = "FAN"
	DeviceWaterPump     DeviceType = "WATER_PUMP"
	DeviceWaterValve    DeviceType = "WATER_VALVE"
	DeviceHeater        DeviceType = "HEATER"
	DeviceLEDLight      DeviceType = "LED_LIGHT"
	DeviceCoolingSystem DeviceType = "COOLING_SYSTEM"
	DeviceServo         DeviceType = "SERVO"
	DeviceWindow        DeviceType = "WINDOW"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceFan, DeviceWaterPump, DeviceWaterValve, DeviceHeater,
		DeviceLEDLight, DeviceCoolingSystem, DeviceServo, DeviceWindow:
		return true
	}
	return false
}

// Opens reports whether the device is driven OPEN/CLOSED rather than ON/OFF.
func (t DeviceType) Opens() bool {
	return t == DeviceServo || t == DeviceWindow
}

type DeviceStatus string

const (
	StatusOn     DeviceStatus = "ON"
	StatusOff    DeviceStatus = "OFF"
	StatusOpen   DeviceStatus = "OPEN"
	StatusClosed DeviceStatus = "CLOSED"
	StatusAuto   DeviceStatus = "AUTO"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusOn, StatusOff, StatusOpen, StatusClosed, StatusAuto:
		return true
	}
	return false
}

// AutomationRules are optional per-device trigger bounds; nil means unset.
type AutomationRules struct {
	TemperatureHigh *float64 `json:"temperatureHigh"`
	TemperatureLow  *float64 `json:"temperatureLow"`
	HumidityHigh    *float64 `json:"humidityHigh"`
	HumidityLow     *float64 `json:"humidityLow"`
	SoilMoistureLow *float64 `json:"soilMoistureLow"`
	LightLevelLow   *float64 `json:"lightLevelLow"`
}

// Device is a controllable actuator, unique by DeviceID.
type Device struct {
	DeviceID         string          `json:"deviceId"`
	GreenhouseID     string          `json:"greenhouseId"`
	DeviceType       DeviceType      `json:"deviceType"`
	DeviceName       string          `json:"deviceName"`
	Status           DeviceStatus    `json:"status"`
	Intensity        float64         `json:"intensity"` // 0..100
	AutoMode         bool            `json:"autoMode"`
	AutomationRules  AutomationRules `json:"automationRules"`
	PowerConsumption float64         `json:"powerConsumption"` // watts
	Location         string          `json:"location"`
	LastActivated    time.Time       `json:"lastActivated"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
