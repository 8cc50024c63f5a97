package service

import (
	"context"
	"time"

	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password, role string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (models.Actor, error)
}

// Telemetry takes device-originated data: sensor payloads and status reports.
type Telemetry interface {
	HandleIngest(ctx context.Context, p models.TelemetryPayload) (models.IngestResult, error)
	ReportStatus(ctx context.Context, rep models.StatusReport) (models.Device, error)
}

// Control applies user commands. HandleCommand serves room members, ControlDevice the REST API.
type Control interface {
	HandleCommand(ctx context.Context, sub realtime.Subscriber, actor models.Actor, roomHint string, cmd models.DeviceCommand) (models.CommandOutcome, error)
	ControlDevice(ctx context.Context, actor *models.Actor, cmd models.DeviceCommand) (models.CommandOutcome, error)
}

type Devices interface {
	ListDevices(ctx context.Context, greenhouseID string) ([]models.Device, error)
	GetDevice(ctx context.Context, deviceID string) (models.Device, error)
	AddDevice(ctx context.Context, d models.Device) (models.Device, error)
	RemoveDevice(ctx context.Context, deviceID string) error
	UpdateAutomation(ctx context.Context, deviceID string, u AutomationUpdate) (models.Device, error)
	EnsureCanonicalDevices(ctx context.Context, greenhouseID string) ([]models.Device, error)
	DeviceCommand(ctx context.Context, deviceID string) (DeviceState, error)
}

type Alerts interface {
	ListAlerts(ctx context.Context, f repository.AlertFilter) ([]models.Alert, error)
	ActiveAlerts(ctx context.Context, greenhouseID string) ([]models.Alert, error)
	ResolveAlert(ctx context.Context, id, by, actionTaken string) (models.Alert, error)
	CreateAlert(ctx context.Context, in models.AlertIntent) (models.Alert, error)
	AlertStats(ctx context.Context, greenhouseID string, hours int) (models.AlertStats, error)
	DeleteAlert(ctx context.Context, id string) error
}

type Settings interface {
	GetThresholds(ctx context.Context, userID int, greenhouseID string) (models.Settings, error)
	SaveThresholds(ctx context.Context, userID int, greenhouseID string, t models.Thresholds) (models.Settings, error)
}

// Monitoring exposes read-only sensor data.
type Monitoring interface {
	LatestReadings(ctx context.Context, greenhouseID string) ([]models.Reading, error)
	History(ctx context.Context, f HistoryFilter) ([]models.Reading, error)
}

// EventLog exposes the append-only control history.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ControlLogEntry, error)
}

// Runner is a background loop stopped via context cancellation.
type Runner interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	Telemetry
	Control
	Devices
	Alerts
	Settings
	Monitoring
	EventLog

	Dispatcher *Dispatcher
	Watchdog   *Watchdog
}

type Options struct {
	StoreTimeout time.Duration
	SigningKey   string
	TokenTTL     time.Duration
	OfflineAfter time.Duration
	Dispatch     DispatcherOptions
}

// NewService wires the repository layer and the room registry into concrete services.
func NewService(repos *repository.Repository, rooms Broadcaster, opts Options) *Service {
	gh := opts.Dispatch.DefaultGreenhouse
	opts.Dispatch.StoreTimeout = opts.StoreTimeout

	mut := NewMutator(repos.Readings, repos.Devices, repos.Alerts, opts.StoreTimeout)
	d := NewDispatcher(mut, repos.Settings, repos.Devices, rooms, opts.Dispatch)

	return &Service{
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
		Telemetry:     d,
		Control:       d,
		Devices:       NewDeviceService(repos.Devices, d, gh, opts.StoreTimeout),
		Alerts:        NewAlertService(repos.Alerts, d, gh, opts.StoreTimeout),
		Settings:      NewSettingsService(repos.Settings, gh, opts.StoreTimeout),
		Monitoring:    NewMonitoringService(repos.Readings, gh, opts.StoreTimeout),
		EventLog:      NewEventLogService(repos.ControlLog, opts.StoreTimeout),
		Dispatcher:    d,
		Watchdog:      NewWatchdog(repos.Readings, d, opts.OfflineAfter, opts.StoreTimeout, opts.Dispatch.Log),
	}
}
