package repository

import (
	"context"
	"database/sql"
	"fmt"

	"greenhouse_control/internal/models"

	"github.com/google/uuid"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	readingColumns = `id, greenhouse_id, sensor_type, device_id, location, temperature, humidity, light_intensity, soil_moisture, custom_value, raw_value, ts`

	insertReadingSQL = `INSERT INTO readings (` + readingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// one row per sensor type: the newest one
	selectLatestReadingsSQL = `SELECT ` + readingColumns + ` FROM readings r
		WHERE r.greenhouse_id = ? AND r.ts = (
			SELECT MAX(ts) FROM readings WHERE greenhouse_id = r.greenhouse_id AND sensor_type = r.sensor_type
		) ORDER BY r.sensor_type ASC`

	selectLastSeenSQL = `SELECT r.device_id, r.greenhouse_id, r.ts FROM readings r
		WHERE r.ts = (SELECT MAX(ts) FROM readings WHERE device_id = r.device_id)`

	defaultReadingLimit = 100
)

// Insert appends a reading. Empty ID and zero Timestamp are filled in.
func (r *ReadingSQLite) Insert(ctx context.Context, rd models.Reading) (models.Reading, error) {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	rd.Timestamp = utcOrNow(rd.Timestamp)

	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		rd.ID,
		rd.GreenhouseID,
		string(rd.SensorType),
		rd.DeviceID,
		rd.Location,
		rd.Temperature,
		rd.Humidity,
		rd.LightIntensity,
		rd.SoilMoisture,
		rd.CustomValue,
		rd.RawValue,
		rd.Timestamp,
	)
	if err != nil {
		return models.Reading{}, fmt.Errorf("insert %s reading for %q: %w", rd.SensorType, rd.DeviceID, err)
	}
	return rd, nil
}

// Latest returns the newest reading of each sensor type in the greenhouse.
func (r *ReadingSQLite) Latest(ctx context.Context, greenhouseID string) ([]models.Reading, error) {
	rows, err := r.db.QueryContext(ctx, selectLatestReadingsSQL, greenhouseID)
	if err != nil {
		return nil, fmt.Errorf("select latest readings: %w", err)
	}
	defer rows.Close()

	out, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	// equal timestamps can yield duplicates; keep the first per type
	seen := make(map[models.SensorType]bool, len(out))
	uniq := out[:0]
	for _, rd := range out {
		if seen[rd.SensorType] {
			continue
		}
		seen[rd.SensorType] = true
		uniq = append(uniq, rd)
	}
	return uniq, nil
}

// List returns readings matching f, newest first.
func (r *ReadingSQLite) List(ctx context.Context, f ReadingFilter) ([]models.Reading, error) {
	var (
		conds []string
		args  []any
	)
	if f.GreenhouseID != "" {
		conds = append(conds, "greenhouse_id = ?")
		args = append(args, f.GreenhouseID)
	}
	if f.SensorType != "" {
		conds = append(conds, "sensor_type = ?")
		args = append(args, string(f.SensorType))
	}
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, f.To.UTC())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultReadingLimit
	}
	args = append(args, limit)

	q := `SELECT ` + readingColumns + ` FROM readings` + where(conds) + ` ORDER BY ts DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()
	return scanReadings(rows)
}

// LastSeen returns the most recent reading time of every device.
func (r *ReadingSQLite) LastSeen(ctx context.Context) ([]DeviceSeen, error) {
	rows, err := r.db.QueryContext(ctx, selectLastSeenSQL)
	if err != nil {
		return nil, fmt.Errorf("select last seen: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []DeviceSeen
	for rows.Next() {
		var s DeviceSeen
		if err := rows.Scan(&s.DeviceID, &s.GreenhouseID, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("scan last seen: %w", err)
		}
		if seen[s.DeviceID] {
			continue
		}
		seen[s.DeviceID] = true
		s.LastSeen = s.LastSeen.UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	out := make([]models.Reading, 0, 16)
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanReading(s rowScanner) (models.Reading, error) {
	var (
		rd                                  models.Reading
		temp, hum, light, soil, custom, raw sql.NullFloat64
	)
	if err := s.Scan(
		&rd.ID,
		&rd.GreenhouseID,
		&rd.SensorType,
		&rd.DeviceID,
		&rd.Location,
		&temp,
		&hum,
		&light,
		&soil,
		&custom,
		&raw,
		&rd.Timestamp,
	); err != nil {
		return models.Reading{}, fmt.Errorf("scan reading: %w", err)
	}
	rd.Temperature = floatPtr(temp)
	rd.Humidity = floatPtr(hum)
	rd.LightIntensity = floatPtr(light)
	rd.SoilMoisture = floatPtr(soil)
	rd.CustomValue = floatPtr(custom)
	rd.RawValue = floatPtr(raw)
	rd.Timestamp = rd.Timestamp.UTC()
	return rd, nil
}
