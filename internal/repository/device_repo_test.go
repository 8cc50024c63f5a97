package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

func deviceRows(status string) *sqlmock.Rows {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"device_id", "greenhouse_id", "device_type", "device_name", "status", "intensity",
		"auto_mode", "automation_rules", "power_consumption", "location", "last_activated",
		"created_at", "updated_at",
	}).AddRow("WATER_PUMP_001", "greenhouse-001", "WATER_PUMP", "Water Pump", status, 0.0,
		false, `{"soilMoistureLow":300}`, 15.0, "Main Greenhouse", nil, now, now)
}

func TestDeviceSQLite_Get(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewDeviceSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
		WithArgs("WATER_PUMP_001").
		WillReturnRows(deviceRows("OFF"))

	d, err := repo.Get(context.Background(), "WATER_PUMP_001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != models.StatusOff || d.DeviceType != models.DeviceWaterPump {
		t.Fatalf("unexpected device: %+v", d)
	}
	if d.AutomationRules.SoilMoistureLow == nil || *d.AutomationRules.SoilMoistureLow != 300 {
		t.Fatalf("automation rules not decoded: %+v", d.AutomationRules)
	}
	if d.AutomationRules.TemperatureHigh != nil {
		t.Fatalf("unset rule should stay nil")
	}
	if !d.LastActivated.IsZero() {
		t.Fatalf("NULL last_activated should be zero, got %v", d.LastActivated)
	}
}

func TestDeviceSQLite_Get_NotFound(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewDeviceSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "NOPE")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeviceSQLite_Create_Duplicate(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewDeviceSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(insertDeviceSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Create(context.Background(), models.Device{DeviceID: "FAN_001", DeviceType: models.DeviceFan})
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestDeviceSQLite_Mutate_WritesDeviceAndLogInOneTx(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewDeviceSQLite(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
		WithArgs("WATER_PUMP_001").
		WillReturnRows(deviceRows("OFF"))
	mock.ExpectExec(regexp.QuoteMeta(updateDeviceSQL)).
		WithArgs("ON", 0.0, false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "WATER_PUMP_001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertControlLogSQL)).
		WithArgs(sqlmock.AnyArg(), "greenhouse-001", "WATER_PUMP_001", "Water Pump", "WATER_PUMP",
			"turn_on", "OFF", "ON", 0.0, "manual", int64(3), "alice", sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	uid := 3
	d, entry, err := repo.Mutate(context.Background(), "WATER_PUMP_001", func(d *models.Device) (*models.ControlLogEntry, error) {
		prev := d.Status
		d.Status = models.StatusOn
		d.LastActivated = time.Now().UTC()
		return &models.ControlLogEntry{
			GreenhouseID:   d.GreenhouseID,
			DeviceID:       d.DeviceID,
			DeviceName:     d.DeviceName,
			DeviceType:     d.DeviceType,
			Action:         models.ActionTurnOn,
			PreviousStatus: prev,
			NewStatus:      d.Status,
			ControlSource:  models.SourceManual,
			UserID:         &uid,
			Username:       "alice",
		}, nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if d.Status != models.StatusOn {
		t.Fatalf("status = %s", d.Status)
	}
	if entry == nil || entry.ID == "" || entry.Timestamp.IsZero() {
		t.Fatalf("log entry not completed: %+v", entry)
	}
}

func TestDeviceSQLite_Mutate_FnErrorRollsBack(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewDeviceSQLite(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
		WithArgs("WATER_PUMP_001").
		WillReturnRows(deviceRows("OFF"))
	mock.ExpectRollback()

	boom := apperr.InvalidAction("fly")
	_, _, err := repo.Mutate(context.Background(), "WATER_PUMP_001", func(d *models.Device) (*models.ControlLogEntry, error) {
		return nil, boom
	})
	if !errors.Is(err, apperr.ErrInvalidAction) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestDeviceSQLite_Mutate_NoLogEntry(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewDeviceSQLite(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
		WithArgs("WATER_PUMP_001").
		WillReturnRows(deviceRows("ON"))
	mock.ExpectExec(regexp.QuoteMeta(updateDeviceSQL)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, entry, err := repo.Mutate(context.Background(), "WATER_PUMP_001", func(d *models.Device) (*models.ControlLogEntry, error) {
		d.AutoMode = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected no log entry, got %+v", entry)
	}
}

func TestDeviceSQLite_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"missing", 0, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMock(t)
			repo := NewDeviceSQLite(db)

			mock.ExpectExec(regexp.QuoteMeta(deleteDeviceSQL)).
				WithArgs("FAN_001").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), "FAN_001")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
