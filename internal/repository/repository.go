package repository

import (
	"context"
	"database/sql"
	"time"

	"greenhouse_control/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash, role string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// ReadingFilter narrows a reading query. Zero fields are ignored.
type ReadingFilter struct {
	GreenhouseID string
	SensorType   models.SensorType
	DeviceID     string
	From, To     time.Time
	Limit        int
}

// DeviceSeen is the most recent ingest time of one sensor node.
type DeviceSeen struct {
	DeviceID     string
	GreenhouseID string
	LastSeen     time.Time
}

type ReadingRepo interface {
	Insert(ctx context.Context, r models.Reading) (models.Reading, error)
	Latest(ctx context.Context, greenhouseID string) ([]models.Reading, error)
	List(ctx context.Context, f ReadingFilter) ([]models.Reading, error)
	LastSeen(ctx context.Context) ([]DeviceSeen, error)
}

// MutateFunc edits the device in place and returns the control-log entry to
// append alongside the update, or nil for none. It must not do I/O.
type MutateFunc func(d *models.Device) (*models.ControlLogEntry, error)

type DeviceRepo interface {
	Create(ctx context.Context, d models.Device) (models.Device, error)
	Get(ctx context.Context, deviceID string) (models.Device, error)
	ListByGreenhouse(ctx context.Context, greenhouseID string) ([]models.Device, error)
	Delete(ctx context.Context, deviceID string) error
	Mutate(ctx context.Context, deviceID string, fn MutateFunc) (models.Device, *models.ControlLogEntry, error)
}

// LogFilter narrows a control-log query. Zero fields are ignored.
type LogFilter struct {
	GreenhouseID string
	DeviceID     string
	Source       models.ControlSource
	From, To     time.Time
	Limit        int
}

type ControlLogRepo interface {
	List(ctx context.Context, f LogFilter) ([]models.ControlLogEntry, error)
}

// AlertFilter narrows an alert query. Resolved nil means both states.
type AlertFilter struct {
	GreenhouseID string
	Resolved     *bool
	Severity     models.Severity
	Limit        int
}

type AlertRepo interface {
	Insert(ctx context.Context, a models.Alert) (models.Alert, error)
	Get(ctx context.Context, id string) (models.Alert, error)
	Resolve(ctx context.Context, id, by, actionTaken string, at time.Time) (models.Alert, error)
	List(ctx context.Context, f AlertFilter) ([]models.Alert, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, greenhouseID string, since time.Time) (models.AlertStats, error)
}

type SettingsRepo interface {
	Get(ctx context.Context, userID int, greenhouseID string) (models.Settings, error)
	Upsert(ctx context.Context, s models.Settings) (models.Settings, error)
	LatestForGreenhouse(ctx context.Context, greenhouseID string) (models.Thresholds, error)
}

type Repository struct {
	Readings   ReadingRepo
	Devices    DeviceRepo
	ControlLog ControlLogRepo
	Alerts     AlertRepo
	Settings   SettingsRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Readings:   NewReadingSQLite(db),
		Devices:    NewDeviceSQLite(db),
		ControlLog: NewControlLogSQLite(db),
		Alerts:     NewAlertSQLite(db),
		Settings:   NewSettingsSQLite(db),
		Auth:       NewUserRepository(db),
	}
}
