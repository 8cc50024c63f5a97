package repository

import (
	"context"
	"database/sql"
	"fmt"

	"greenhouse_control/internal/models"
)

type ControlLogSQLite struct {
	db *sql.DB
}

func NewControlLogSQLite(db *sql.DB) *ControlLogSQLite { return &ControlLogSQLite{db: db} }

var _ ControlLogRepo = (*ControlLogSQLite)(nil)

const (
	controlLogColumns = `id, greenhouse_id, device_id, device_name, device_type, action, previous_status, new_status, intensity, control_source, user_id, username, ts, notes`

	insertControlLogSQL = `INSERT INTO control_logs (` + controlLogColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	defaultLogLimit = 50
)

// insertControlLog appends e using ex, which is the caller's transaction.
func insertControlLog(ctx context.Context, ex execer, e models.ControlLogEntry) error {
	var userID any
	if e.UserID != nil {
		userID = int64(*e.UserID)
	}
	_, err := ex.ExecContext(ctx, insertControlLogSQL,
		e.ID,
		e.GreenhouseID,
		e.DeviceID,
		e.DeviceName,
		string(e.DeviceType),
		string(e.Action),
		string(e.PreviousStatus),
		string(e.NewStatus),
		e.Intensity,
		string(e.ControlSource),
		userID,
		e.Username,
		e.Timestamp.UTC(),
		e.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert control log for %q: %w", e.DeviceID, err)
	}
	return nil
}

// List returns log entries matching f, newest first.
func (r *ControlLogSQLite) List(ctx context.Context, f LogFilter) ([]models.ControlLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.GreenhouseID != "" {
		conds = append(conds, "greenhouse_id = ?")
		args = append(args, f.GreenhouseID)
	}
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.Source != "" {
		conds = append(conds, "control_source = ?")
		args = append(args, string(f.Source))
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
		limit = defaultLogLimit
	}
	args = append(args, limit)

	q := `SELECT ` + controlLogColumns + ` FROM control_logs` + where(conds) + ` ORDER BY ts DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select control logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.ControlLogEntry, 0, 32)
	for rows.Next() {
		var (
			e      models.ControlLogEntry
			userID sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID,
			&e.GreenhouseID,
			&e.DeviceID,
			&e.DeviceName,
			&e.DeviceType,
			&e.Action,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.Intensity,
			&e.ControlSource,
			&userID,
			&e.Username,
			&e.Timestamp,
			&e.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan control log: %w", err)
		}
		if userID.Valid {
			id := int(userID.Int64)
			e.UserID = &id
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
