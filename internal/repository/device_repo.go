package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"

	"github.com/google/uuid"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

var _ DeviceRepo = (*DeviceSQLite)(nil)

const (
	deviceColumns = `device_id, greenhouse_id, device_type, device_name, status, intensity, auto_mode, automation_rules, power_consumption, location, last_activated, created_at, updated_at`

	insertDeviceSQL = `INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO NOTHING`

	selectDeviceSQL = `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`

	selectDevicesByGreenhouseSQL = `SELECT ` + deviceColumns + ` FROM devices WHERE greenhouse_id = ? ORDER BY device_type ASC, device_name ASC`

	updateDeviceSQL = `UPDATE devices SET status = ?, intensity = ?, auto_mode = ?, automation_rules = ?, last_activated = ?, updated_at = ?
		WHERE device_id = ?`

	deleteDeviceSQL = `DELETE FROM devices WHERE device_id = ?`
)

// Create inserts a device. An existing device id is rejected, not overwritten.
func (r *DeviceSQLite) Create(ctx context.Context, d models.Device) (models.Device, error) {
	rules, err := marshalJSON(d.AutomationRules)
	if err != nil {
		return models.Device{}, fmt.Errorf("marshal automation rules: %w", err)
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	res, err := r.db.ExecContext(ctx, insertDeviceSQL,
		d.DeviceID,
		d.GreenhouseID,
		string(d.DeviceType),
		d.DeviceName,
		string(d.Status),
		d.Intensity,
		d.AutoMode,
		rules,
		d.PowerConsumption,
		d.Location,
		nullableTime(d.LastActivated),
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return models.Device{}, fmt.Errorf("insert device %q: %w", d.DeviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Device{}, fmt.Errorf("rows affected for device %q: %w", d.DeviceID, err)
	}
	if n == 0 {
		return models.Device{}, apperr.BadRequest("device %q already exists", d.DeviceID)
	}
	return d, nil
}

func (r *DeviceSQLite) Get(ctx context.Context, deviceID string) (models.Device, error) {
	return scanDevice(r.db.QueryRowContext(ctx, selectDeviceSQL, deviceID), deviceID)
}

func (r *DeviceSQLite) ListByGreenhouse(ctx context.Context, greenhouseID string) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesByGreenhouseSQL, greenhouseID)
	if err != nil {
		return nil, fmt.Errorf("select devices of %q: %w", greenhouseID, err)
	}
	defer rows.Close()

	out := make([]models.Device, 0, 8)
	for rows.Next() {
		d, err := scanDevice(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DeviceSQLite) Delete(ctx context.Context, deviceID string) error {
	res, err := r.db.ExecContext(ctx, deleteDeviceSQL, deviceID)
	if err != nil {
		return fmt.Errorf("delete device %q: %w", deviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for device %q: %w", deviceID, err)
	}
	if n == 0 {
		return apperr.NotFound("device %q", deviceID)
	}
	return nil
}

// Mutate loads the device, applies fn and writes the device together with the
// returned log entry in one transaction. Nothing is written if fn fails.
func (r *DeviceSQLite) Mutate(ctx context.Context, deviceID string, fn MutateFunc) (models.Device, *models.ControlLogEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Device{}, nil, fmt.Errorf("begin device transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	d, err := scanDevice(tx.QueryRowContext(ctx, selectDeviceSQL, deviceID), deviceID)
	if err != nil {
		return models.Device{}, nil, err
	}

	entry, err := fn(&d)
	if err != nil {
		return models.Device{}, nil, err
	}

	rules, err := marshalJSON(d.AutomationRules)
	if err != nil {
		return models.Device{}, nil, fmt.Errorf("marshal automation rules: %w", err)
	}
	d.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, updateDeviceSQL,
		string(d.Status),
		d.Intensity,
		d.AutoMode,
		rules,
		nullableTime(d.LastActivated),
		d.UpdatedAt,
		d.DeviceID,
	); err != nil {
		return models.Device{}, nil, fmt.Errorf("update device %q: %w", deviceID, err)
	}

	if entry != nil {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.Timestamp = utcOrNow(entry.Timestamp)
		if err := insertControlLog(ctx, tx, *entry); err != nil {
			return models.Device{}, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Device{}, nil, fmt.Errorf("commit device %q: %w", deviceID, err)
	}
	return d, entry, nil
}

// scanDevice maps sql.ErrNoRows to a NotFound error naming id.
func scanDevice(s rowScanner, id string) (models.Device, error) {
	var (
		d             models.Device
		rules         string
		lastActivated sql.NullTime
	)
	if err := s.Scan(
		&d.DeviceID,
		&d.GreenhouseID,
		&d.DeviceType,
		&d.DeviceName,
		&d.Status,
		&d.Intensity,
		&d.AutoMode,
		&rules,
		&d.PowerConsumption,
		&d.Location,
		&lastActivated,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Device{}, apperr.NotFound("device %q", id)
		}
		return models.Device{}, fmt.Errorf("scan device: %w", err)
	}
	if err := unmarshalJSON(rules, &d.AutomationRules); err != nil {
		return models.Device{}, fmt.Errorf("decode automation rules of %q: %w", d.DeviceID, err)
	}
	if lastActivated.Valid {
		d.LastActivated = lastActivated.Time.UTC()
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}
