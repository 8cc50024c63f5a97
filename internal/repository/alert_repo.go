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

type AlertSQLite struct {
	db *sql.DB
}

func NewAlertSQLite(db *sql.DB) *AlertSQLite { return &AlertSQLite{db: db} }

var _ AlertRepo = (*AlertSQLite)(nil)

const (
	alertColumns = `id, greenhouse_id, alert_type, severity, message, current_value, threshold_value, sensor_type, device_id, is_resolved, resolved_at, resolved_by, action_taken, auto_resolved, created_at`

	insertAlertSQL = `INSERT INTO alerts (` + alertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectAlertSQL = `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	// the is_resolved guard makes resolve a one-shot transition
	resolveAlertSQL = `UPDATE alerts SET is_resolved = 1, resolved_at = ?, resolved_by = ?, action_taken = ?
		WHERE id = ? AND is_resolved = 0`

	deleteAlertSQL = `DELETE FROM alerts WHERE id = ?`

	alertStatsSQL = `SELECT severity, alert_type, is_resolved, COUNT(*) FROM alerts
		WHERE greenhouse_id = ? AND created_at >= ?
		GROUP BY severity, alert_type, is_resolved`

	defaultAlertLimit = 50
)

// Insert stores a new alert. Empty ID and zero CreatedAt are filled in.
func (r *AlertSQLite) Insert(ctx context.Context, a models.Alert) (models.Alert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = utcOrNow(a.CreatedAt)

	var resolvedAt any
	if a.IsResolved {
		if a.ResolvedAt == nil {
			t := a.CreatedAt
			a.ResolvedAt = &t
		}
		resolvedAt = a.ResolvedAt.UTC()
	} else {
		a.ResolvedAt = nil
	}

	_, err := r.db.ExecContext(ctx, insertAlertSQL,
		a.ID,
		a.GreenhouseID,
		string(a.AlertType),
		string(a.Severity),
		a.Message,
		a.CurrentValue,
		a.ThresholdValue,
		string(a.SensorType),
		a.DeviceID,
		a.IsResolved,
		resolvedAt,
		a.ResolvedBy,
		a.ActionTaken,
		a.AutoResolved,
		a.CreatedAt,
	)
	if err != nil {
		return models.Alert{}, fmt.Errorf("insert %s alert: %w", a.AlertType, err)
	}
	return a, nil
}

func (r *AlertSQLite) Get(ctx context.Context, id string) (models.Alert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, selectAlertSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Alert{}, apperr.NotFound("alert %q", id)
	}
	return a, err
}

// Resolve marks an unresolved alert resolved. A second resolve fails with
// ErrAlreadyResolved and leaves the stored resolution untouched.
func (r *AlertSQLite) Resolve(ctx context.Context, id, by, actionTaken string, at time.Time) (models.Alert, error) {
	res, err := r.db.ExecContext(ctx, resolveAlertSQL, at.UTC(), by, actionTaken, id)
	if err != nil {
		return models.Alert{}, fmt.Errorf("resolve alert %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Alert{}, fmt.Errorf("rows affected for alert %q: %w", id, err)
	}

	a, err := r.Get(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	if n == 0 {
		return a, fmt.Errorf("%w: %q", apperr.ErrAlreadyResolved, id)
	}
	return a, nil
}

// List returns alerts matching f, newest first.
func (r *AlertSQLite) List(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	var (
		conds []string
		args  []any
	)
	if f.GreenhouseID != "" {
		conds = append(conds, "greenhouse_id = ?")
		args = append(args, f.GreenhouseID)
	}
	if f.Resolved != nil {
		conds = append(conds, "is_resolved = ?")
		args = append(args, *f.Resolved)
	}
	if f.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(f.Severity))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	args = append(args, limit)

	q := `SELECT ` + alertColumns + ` FROM alerts` + where(conds) + ` ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Alert, 0, 16)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AlertSQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteAlertSQL, id)
	if err != nil {
		return fmt.Errorf("delete alert %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for alert %q: %w", id, err)
	}
	if n == 0 {
		return apperr.NotFound("alert %q", id)
	}
	return nil
}

// Stats counts the greenhouse's alerts created at or after since.
func (r *AlertSQLite) Stats(ctx context.Context, greenhouseID string, since time.Time) (models.AlertStats, error) {
	st := models.AlertStats{
		BySeverity: make(map[models.Severity]int),
		ByType:     make(map[models.AlertType]int),
		Since:      since.UTC(),
	}

	rows, err := r.db.QueryContext(ctx, alertStatsSQL, greenhouseID, since.UTC())
	if err != nil {
		return st, fmt.Errorf("select alert stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sev      models.Severity
			typ      models.AlertType
			resolved bool
			n        int
		)
		if err := rows.Scan(&sev, &typ, &resolved, &n); err != nil {
			return st, fmt.Errorf("scan alert stats: %w", err)
		}
		st.Total += n
		if resolved {
			st.Resolved += n
		} else {
			st.Active += n
		}
		st.BySeverity[sev] += n
		st.ByType[typ] += n
	}
	return st, rows.Err()
}

func scanAlert(s rowScanner) (models.Alert, error) {
	var (
		a          models.Alert
		resolvedAt sql.NullTime
	)
	if err := s.Scan(
		&a.ID,
		&a.GreenhouseID,
		&a.AlertType,
		&a.Severity,
		&a.Message,
		&a.CurrentValue,
		&a.ThresholdValue,
		&a.SensorType,
		&a.DeviceID,
		&a.IsResolved,
		&resolvedAt,
		&a.ResolvedBy,
		&a.ActionTaken,
		&a.AutoResolved,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Alert{}, err
		}
		return models.Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		a.ResolvedAt = &t
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
