package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
)

// canonicalDevices are the actuators the reference firmware drives.
var canonicalDevices = []models.Device{
	{DeviceID: "WATER_PUMP_001", DeviceName: "Water Pump", DeviceType: models.DeviceWaterPump, Status: models.StatusOff, PowerConsumption: 25, AutoMode: true},
	{DeviceID: "WATER_VALVE_001", DeviceName: "Irrigation Valve", DeviceType: models.DeviceWaterValve, Status: models.StatusOff, PowerConsumption: 10, AutoMode: true},
	{DeviceID: "WINDOW_SERVO_001", DeviceName: "Window Control", DeviceType: models.DeviceWindow, Status: models.StatusClosed, PowerConsumption: 5, AutoMode: true},
	{DeviceID: "FAN_001", DeviceName: "Ventilation Fan", DeviceType: models.DeviceFan, Status: models.StatusOff, PowerConsumption: 30, AutoMode: true},
	{DeviceID: "LED_LIGHT_001", DeviceName: "LED Grow Light", DeviceType: models.DeviceLEDLight, Status: models.StatusOff, PowerConsumption: 15, AutoMode: true, Intensity: 100},
}

type DeviceService struct {
	repo              repository.DeviceRepo
	rooms             RoomNotifier
	defaultGreenhouse string
	timeout           time.Duration
}

func NewDeviceService(repo repository.DeviceRepo, rooms RoomNotifier, defaultGreenhouse string, timeout time.Duration) *DeviceService {
	if defaultGreenhouse == "" {
		defaultGreenhouse = models.DefaultGreenhouseID
	}
	return &DeviceService{repo: repo, rooms: rooms, defaultGreenhouse: defaultGreenhouse, timeout: timeout}
}

func (s *DeviceService) greenhouse(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultGreenhouse
}

func (s *DeviceService) ListDevices(ctx context.Context, greenhouseID string) ([]models.Device, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	ds, err := s.repo.ListByGreenhouse(ctx, s.greenhouse(greenhouseID))
	if err != nil {
		return nil, apperr.Internal("list devices", err)
	}
	if ds == nil {
		ds = []models.Device{}
	}
	return ds, nil
}

func (s *DeviceService) GetDevice(ctx context.Context, deviceID string) (models.Device, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return models.Device{}, apperr.Internal("load device", err)
	}
	return d, nil
}

// AddDevice registers a new actuator and broadcasts deviceAdded.
func (s *DeviceService) AddDevice(ctx context.Context, d models.Device) (models.Device, error) {
	d.DeviceID = strings.TrimSpace(d.DeviceID)
	d.DeviceName = strings.TrimSpace(d.DeviceName)
	if d.DeviceID == "" || d.DeviceName == "" {
		return models.Device{}, apperr.BadRequest("deviceId and deviceName are required")
	}
	if !d.DeviceType.Valid() {
		return models.Device{}, apperr.BadRequest("unknown device type %q", d.DeviceType)
	}
	if d.Status == "" {
		d.Status = models.StatusOff
		if d.DeviceType.Opens() {
			d.Status = models.StatusClosed
		}
	}
	if !d.Status.Valid() {
		return models.Device{}, apperr.Validation("unknown status %q", d.Status)
	}
	if d.Intensity < 0 || d.Intensity > 100 {
		return models.Device{}, apperr.Validation("intensity %s out of range [0, 100]", num(d.Intensity))
	}
	if d.Location == "" {
		d.Location = models.DefaultLocation
	}
	d.GreenhouseID = s.greenhouse(d.GreenhouseID)

	var created models.Device
	err := s.rooms.Persisted(ctx, d.GreenhouseID, func(ctx context.Context) (string, any, error) {
		c, err := s.repo.Create(ctx, d)
		if err != nil {
			return "", nil, err
		}
		created = c
		return realtime.EventDeviceAdded, c, nil
	})
	if err != nil {
		return models.Device{}, apperr.Internal("create device", err)
	}
	return created, nil
}

// RemoveDevice deletes the device and broadcasts deviceRemoved.
func (s *DeviceService) RemoveDevice(ctx context.Context, deviceID string) error {
	d, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	err = s.rooms.Persisted(ctx, d.GreenhouseID, func(ctx context.Context) (string, any, error) {
		if err := s.repo.Delete(ctx, d.DeviceID); err != nil {
			return "", nil, err
		}
		return realtime.EventDeviceRemoved, models.DeviceRemoved{DeviceID: d.DeviceID}, nil
	})
	if err != nil {
		return apperr.Internal("delete device", err)
	}
	return nil
}

// UpdateAutomation replaces the automation rules and broadcasts the new
// device state. No control-log entry is written: the status is unchanged.
func (s *DeviceService) UpdateAutomation(ctx context.Context, deviceID string, u AutomationUpdate) (models.Device, error) {
	d, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return models.Device{}, err
	}

	var updated models.Device
	err = s.rooms.Persisted(ctx, d.GreenhouseID, func(ctx context.Context) (string, any, error) {
		dev, _, err := s.repo.Mutate(ctx, d.DeviceID, func(dev *models.Device) (*models.ControlLogEntry, error) {
			dev.AutomationRules = u.Rules
			if u.AutoMode != nil {
				dev.AutoMode = *u.AutoMode
			}
			return nil, nil
		})
		if err != nil {
			return "", nil, err
		}
		updated = dev
		return realtime.EventDeviceUpdate, models.DeviceUpdate{Device: dev, Source: models.SourceManual}, nil
	})
	if err != nil {
		return models.Device{}, apperr.Internal("update automation rules", err)
	}
	return updated, nil
}

// EnsureCanonicalDevices creates the reference actuators that are missing
// and returns every device of the greenhouse.
func (s *DeviceService) EnsureCanonicalDevices(ctx context.Context, greenhouseID string) ([]models.Device, error) {
	gh := s.greenhouse(greenhouseID)
	for _, c := range canonicalDevices {
		_, err := s.GetDevice(ctx, c.DeviceID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		c.GreenhouseID = gh
		if _, err := s.AddDevice(ctx, c); err != nil {
			return nil, err
		}
	}
	return s.ListDevices(ctx, gh)
}

// DeviceCommand returns the state a polling device should converge to.
func (s *DeviceService) DeviceCommand(ctx context.Context, deviceID string) (DeviceState, error) {
	d, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	return DeviceState{
		DeviceID:        d.DeviceID,
		Status:          d.Status,
		Intensity:       d.Intensity,
		AutoMode:        d.AutoMode,
		AutomationRules: d.AutomationRules,
		LastUpdate:      d.UpdatedAt,
	}, nil
}
