package models

import "time"

// Action is a device-control verb.
type Action string

const (
	ActionTurnOn         Action = "turn_on"
	ActionTurnOff        Action = "turn_off"
	ActionOpen           Action = "open"
	ActionClose          Action = "close"
	ActionToggle         Action = "toggle"
	ActionSetIntensity   Action = "set_intensity"
	ActionSetAutoMode    Action = "set_auto_mode"
	ActionManualOverride Action = "manual_override"
	ActionAutoControl    Action = "auto_control"
)

// Command reports whether a is one of the verbs accepted from clients.
func (a Action) Command() bool {
	switch a {
	case ActionTurnOn, ActionTurnOff, ActionOpen, ActionClose,
		ActionToggle, ActionSetIntensity, ActionSetAutoMode:
		return true
	}
	return false
}

// ChangesStatus reports whether the verb drives the device status.
func (a Action) ChangesStatus() bool {
	switch a {
	case ActionTurnOn, ActionTurnOff, ActionOpen, ActionClose, ActionToggle:
		return true
	}
	return false
}

type ControlSource string

const (
	SourceManual     ControlSource = "manual"
	SourceAutomation ControlSource = "automation"
	SourceIoTDevice  ControlSource = "iot_device"
	SourceSchedule   ControlSource = "schedule"
)

// ControlLogEntry is an append-only audit record of a device state transition.
type ControlLogEntry struct {
	ID             string        `json:"id"`
	GreenhouseID   string        `json:"greenhouseId"`
	DeviceID       string        `json:"deviceId"`
	DeviceName     string        `json:"deviceName"`
	DeviceType     DeviceType    `json:"deviceType"`
	Action         Action        `json:"action"`
	PreviousStatus DeviceStatus  `json:"previousStatus"`
	NewStatus      DeviceStatus  `json:"newStatus"`
	Intensity      float64       `json:"intensity"`
	ControlSource  ControlSource `json:"controlSource"`
	UserID         *int          `json:"userId,omitempty"`
	Username       string        `json:"username,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Notes          string        `json:"notes,omitempty"`
}
