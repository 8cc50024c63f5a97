package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One connection: every device mutation transaction is serialized by the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

const schemaReadings = `
CREATE TABLE IF NOT EXISTS readings (
    id TEXT PRIMARY KEY,
    greenhouse_id TEXT NOT NULL,
    sensor_type TEXT NOT NULL,
    device_id TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    temperature REAL,
    humidity REAL,
    light_intensity REAL,
    soil_moisture REAL,
    custom_value REAL,
    raw_value REAL,
    ts TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_greenhouse_ts ON readings (greenhouse_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings (device_id, ts DESC);
`

const schemaDevices = `
CREATE TABLE IF NOT EXISTS devices (
    device_id TEXT PRIMARY KEY,
    greenhouse_id TEXT NOT NULL,
    device_type TEXT NOT NULL,
    device_name TEXT NOT NULL,
    status TEXT NOT NULL,
    intensity REAL NOT NULL DEFAULT 0 CHECK (intensity BETWEEN 0 AND 100),
    auto_mode BOOLEAN NOT NULL DEFAULT 0,
    automation_rules TEXT NOT NULL DEFAULT '{}',
    power_consumption REAL NOT NULL DEFAULT 0,
    location TEXT NOT NULL DEFAULT '',
    last_activated TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_devices_greenhouse ON devices (greenhouse_id);
`

const schemaControlLogs = `
CREATE TABLE IF NOT EXISTS control_logs (
    id TEXT PRIMARY KEY,
    greenhouse_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    device_name TEXT NOT NULL,
    device_type TEXT NOT NULL,
    action TEXT NOT NULL,
    previous_status TEXT NOT NULL,
    new_status TEXT NOT NULL,
    intensity REAL NOT NULL DEFAULT 0,
    control_source TEXT NOT NULL,
    user_id INTEGER,
    username TEXT NOT NULL DEFAULT '',
    ts TIMESTAMP NOT NULL,
    notes TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_control_logs_greenhouse_ts ON control_logs (greenhouse_id, ts DESC);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    greenhouse_id TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    current_value REAL NOT NULL,
    threshold_value REAL NOT NULL,
    sensor_type TEXT NOT NULL,
    device_id TEXT NOT NULL DEFAULT '',
    is_resolved BOOLEAN NOT NULL DEFAULT 0,
    resolved_at TIMESTAMP,
    resolved_by TEXT NOT NULL DEFAULT '',
    action_taken TEXT NOT NULL DEFAULT '',
    auto_resolved BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    CHECK ((is_resolved = 0) = (resolved_at IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_alerts_greenhouse_created ON alerts (greenhouse_id, created_at DESC);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'operator'
);
`

const schemaSettings = `
CREATE TABLE IF NOT EXISTS settings (
    user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    greenhouse_id TEXT NOT NULL,
    alert_thresholds TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, greenhouse_id)
);
CREATE INDEX IF NOT EXISTS idx_settings_greenhouse_updated ON settings (greenhouse_id, updated_at DESC);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaReadings,
		schemaDevices,
		schemaControlLogs,
		schemaAlerts,
		schemaUsers,
		schemaSettings,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
