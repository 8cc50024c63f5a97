package service

import (
	"context"
	"math"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

// fieldRange is the accepted range of one reading field.
type fieldRange struct {
	name     string
	min, max float64
	get      func(r *models.Reading) *float64
}

var readingRanges = []fieldRange{
	{"temperature", -40, 80, func(r *models.Reading) *float64 { return r.Temperature }},
	{"humidity", 0, 100, func(r *models.Reading) *float64 { return r.Humidity }},
	{"soilMoisture", 0, 4095, func(r *models.Reading) *float64 { return r.SoilMoisture }},
	{"lightIntensity", 0, 10000, func(r *models.Reading) *float64 { return r.LightIntensity }},
}

// Mutator applies events to the store. Every store call is bounded by timeout
// and store failures surface as ErrInternal.
type Mutator struct {
	readings repository.ReadingRepo
	devices  repository.DeviceRepo
	alerts   repository.AlertRepo
	timeout  time.Duration
	now      func() time.Time
}

func NewMutator(readings repository.ReadingRepo, devices repository.DeviceRepo, alerts repository.AlertRepo, timeout time.Duration) *Mutator {
	return &Mutator{
		readings: readings,
		devices:  devices,
		alerts:   alerts,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Mutator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return withStoreTimeout(ctx, m.timeout)
}

// ValidateReading rejects out-of-range fields. Values are never clamped.
func ValidateReading(r models.Reading) error {
	for _, fr := range readingRanges {
		v := fr.get(&r)
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || *v < fr.min || *v > fr.max {
			return apperr.Validation("%s %s out of range [%s, %s]", fr.name, num(*v), num(fr.min), num(fr.max))
		}
	}
	return nil
}

// ApplyReading validates r, stamps the server time and appends it.
func (m *Mutator) ApplyReading(ctx context.Context, r models.Reading) (models.Reading, error) {
	if !r.SensorType.Valid() {
		return models.Reading{}, apperr.BadRequest("unknown sensor type %q", r.SensorType)
	}
	if err := ValidateReading(r); err != nil {
		return models.Reading{}, err
	}
	r.ID = ""
	r.Timestamp = m.now()

	ctx, cancel := m.bound(ctx)
	defer cancel()

	stored, err := m.readings.Insert(ctx, r)
	if err != nil {
		return models.Reading{}, apperr.Internal("store reading", err)
	}
	return stored, nil
}

// ApplyDeviceCommand changes the device per cmd.Action and appends exactly one
// control-log entry in the same transaction.
func (m *Mutator) ApplyDeviceCommand(ctx context.Context, cmd models.DeviceCommand, source models.ControlSource, actor *models.Actor) (models.CommandOutcome, error) {
	if !cmd.Action.Command() {
		return models.CommandOutcome{}, apperr.InvalidAction("unknown action %q", cmd.Action)
	}
	if cmd.DeviceID == "" {
		return models.CommandOutcome{}, apperr.BadRequest("deviceId is required")
	}
	if cmd.Action == models.ActionSetIntensity {
		v, ok := cmd.Number()
		if !ok || math.IsNaN(v) {
			return models.CommandOutcome{}, apperr.BadRequest("set_intensity needs a numeric value")
		}
	}

	ctx, cancel := m.bound(ctx)
	defer cancel()

	now := m.now()
	var prev models.DeviceStatus
	d, entry, err := m.devices.Mutate(ctx, cmd.DeviceID, func(d *models.Device) (*models.ControlLogEntry, error) {
		prev = d.Status
		applyAction(d, cmd, now)

		e := &models.ControlLogEntry{
			GreenhouseID:   d.GreenhouseID,
			DeviceID:       d.DeviceID,
			DeviceName:     d.DeviceName,
			DeviceType:     d.DeviceType,
			Action:         cmd.Action,
			PreviousStatus: prev,
			NewStatus:      d.Status,
			Intensity:      d.Intensity,
			ControlSource:  source,
			Timestamp:      now,
			Notes:          cmd.Notes,
		}
		if actor != nil {
			uid := actor.UserID
			e.UserID = &uid
			e.Username = actor.Username
		}
		return e, nil
	})
	if err != nil {
		return models.CommandOutcome{}, apperr.Internal("apply device command", err)
	}
	return models.CommandOutcome{Device: d, PreviousStatus: prev, NewStatus: d.Status, Log: entry}, nil
}

// applyAction mutates d for a recognized command action.
func applyAction(d *models.Device, cmd models.DeviceCommand, now time.Time) {
	switch cmd.Action {
	case models.ActionTurnOn:
		d.Status = models.StatusOn
	case models.ActionTurnOff:
		d.Status = models.StatusOff
	case models.ActionOpen:
		d.Status = models.StatusOpen
	case models.ActionClose:
		d.Status = models.StatusClosed
	case models.ActionToggle:
		d.Status = toggled(d.DeviceType, d.Status)
	case models.ActionSetIntensity:
		v, _ := cmd.Number()
		d.Intensity = clamp(v, 0, 100)
	case models.ActionSetAutoMode:
		if b, ok := cmd.Bool(); ok {
			d.AutoMode = b
		} else {
			d.AutoMode = !d.AutoMode
		}
	}
	if cmd.Action.ChangesStatus() {
		d.LastActivated = now
	}
}

func toggled(t models.DeviceType, s models.DeviceStatus) models.DeviceStatus {
	if t.Opens() {
		if s == models.StatusOpen {
			return models.StatusClosed
		}
		return models.StatusOpen
	}
	if s == models.StatusOn {
		return models.StatusOff
	}
	return models.StatusOn
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ApplyDeviceStatusReport records state the device reached on its own.
// Absent fields are left alone. A log entry is written only when the
// status actually changes.
func (m *Mutator) ApplyDeviceStatusReport(ctx context.Context, rep models.StatusReport) (models.CommandOutcome, error) {
	if rep.DeviceID == "" {
		return models.CommandOutcome{}, apperr.BadRequest("deviceId is required")
	}
	if rep.Status != "" && !rep.Status.Valid() {
		return models.CommandOutcome{}, apperr.Validation("unknown status %q", rep.Status)
	}
	if rep.Intensity != nil && math.IsNaN(*rep.Intensity) {
		return models.CommandOutcome{}, apperr.Validation("intensity is not a number")
	}

	ctx, cancel := m.bound(ctx)
	defer cancel()

	now := m.now()
	var prev models.DeviceStatus
	d, entry, err := m.devices.Mutate(ctx, rep.DeviceID, func(d *models.Device) (*models.ControlLogEntry, error) {
		prev = d.Status
		if rep.AutoMode != nil {
			d.AutoMode = *rep.AutoMode
		}
		if rep.Intensity != nil {
			d.Intensity = clamp(*rep.Intensity, 0, 100)
		}
		if rep.Status == "" || rep.Status == d.Status {
			return nil, nil
		}
		d.Status = rep.Status
		d.LastActivated = now
		return &models.ControlLogEntry{
			GreenhouseID:   d.GreenhouseID,
			DeviceID:       d.DeviceID,
			DeviceName:     d.DeviceName,
			DeviceType:     d.DeviceType,
			Action:         models.ActionAutoControl,
			PreviousStatus: prev,
			NewStatus:      d.Status,
			Intensity:      d.Intensity,
			ControlSource:  models.SourceIoTDevice,
			Timestamp:      now,
			Notes:          "status reported by device",
		}, nil
	})
	if err != nil {
		return models.CommandOutcome{}, apperr.Internal("apply status report", err)
	}
	return models.CommandOutcome{Device: d, PreviousStatus: prev, NewStatus: d.Status, Log: entry}, nil
}

// RecordAlert persists an evaluator intent as a new unresolved alert.
func (m *Mutator) RecordAlert(ctx context.Context, in models.AlertIntent) (models.Alert, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	a, err := m.alerts.Insert(ctx, in.NewAlert("", m.now()))
	if err != nil {
		return models.Alert{}, apperr.Internal("store alert", err)
	}
	return a, nil
}
