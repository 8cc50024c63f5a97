package models

import "time"

// DeviceCommand is a control request from a dashboard or the REST API.
// Value carries the intensity (number) or auto-mode flag (bool) when the
// action needs one. RelayOnly commands are forwarded to the room but never applied.
type DeviceCommand struct {
	DeviceID     string `json:"deviceId"`
	Action       Action `json:"action"`
	GreenhouseID string `json:"greenhouseId"`
	Value        any    `json:"value,omitempty"`
	RelayOnly    bool   `json:"relayOnly,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Number returns Value as a float when it is numeric.
func (c DeviceCommand) Number() (float64, bool) {
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns Value as a bool when it is one.
func (c DeviceCommand) Bool() (bool, bool) {
	b, ok := c.Value.(bool)
	return b, ok
}

// StatusReport is a device-originated state change.
type StatusReport struct {
	DeviceID     string       `json:"deviceId"`
	GreenhouseID string       `json:"greenhouseId,omitempty"`
	Status       DeviceStatus `json:"status"`
	AutoMode     *bool        `json:"autoMode,omitempty"`
	Intensity    *float64     `json:"intensity,omitempty"`
	Fault        string       `json:"fault,omitempty"`
}

// CommandOutcome is the result of a persisted device mutation.
type CommandOutcome struct {
	Device         Device           `json:"device"`
	PreviousStatus DeviceStatus     `json:"previousStatus"`
	NewStatus      DeviceStatus     `json:"newStatus"`
	Log            *ControlLogEntry `json:"controlLog,omitempty"`
}

// IngestFailure records one sensor kind of a payload that was not stored.
type IngestFailure struct {
	SensorType SensorType `json:"sensorType"`
	Error      string     `json:"error"`
}

// IngestResult acknowledges a telemetry payload.
type IngestResult struct {
	DeviceID         string          `json:"deviceId"`
	GreenhouseID     string          `json:"greenhouseId"`
	SensorsProcessed int             `json:"sensorsProcessed"`
	Readings         []Reading       `json:"readings"`
	Alerts           []Alert         `json:"alerts"`
	Failures         []IngestFailure `json:"failures,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Outbound event payloads.

type SensorUpdate struct {
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

type AllSensorsUpdate struct {
	DeviceID       string    `json:"deviceId"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	SoilMoisture   float64   `json:"soilMoisture"`
	LightIntensity float64   `json:"lightIntensity"`
	WaterLevel     float64   `json:"waterLevel"`
	Timestamp      time.Time `json:"timestamp"`
}

// DeviceUpdate is a device snapshot tagged with who caused the change.
type DeviceUpdate struct {
	Device
	Source ControlSource `json:"source"`
}

type DeviceControlled struct {
	Device    Device    `json:"device"`
	Action    Action    `json:"action"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceControlRelay is what the rest of a room sees when a member issues a command.
type DeviceControlRelay struct {
	DeviceID  string    `json:"deviceId"`
	Action    Action    `json:"action"`
	UserID    int       `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type DeviceRemoved struct {
	DeviceID string `json:"deviceId"`
}

type RoomJoined struct {
	GreenhouseID string `json:"greenhouseId"`
	Message      string `json:"message"`
}

type ErrorNotice struct {
	Message string `json:"message"`
	Action  Action `json:"action,omitempty"`
}
