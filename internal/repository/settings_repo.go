package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite { return &SettingsSQLite{db: db} }

var _ SettingsRepo = (*SettingsSQLite)(nil)

const (
	upsertSettingsSQL = `
		INSERT INTO settings (user_id, greenhouse_id, alert_thresholds, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, greenhouse_id) DO UPDATE SET
			alert_thresholds=excluded.alert_thresholds,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `SELECT user_id, greenhouse_id, alert_thresholds, updated_at FROM settings
		WHERE user_id = ? AND greenhouse_id = ?`

	selectLatestThresholdsSQL = `SELECT alert_thresholds FROM settings
		WHERE greenhouse_id = ? ORDER BY updated_at DESC LIMIT 1`
)

// Get returns the user's settings for the greenhouse or a NotFound error.
func (r *SettingsSQLite) Get(ctx context.Context, userID int, greenhouseID string) (models.Settings, error) {
	var (
		s   models.Settings
		raw string
	)
	err := r.db.QueryRowContext(ctx, selectSettingsSQL, userID, greenhouseID).
		Scan(&s.UserID, &s.GreenhouseID, &raw, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Settings{}, apperr.NotFound("settings for user %d in %q", userID, greenhouseID)
		}
		return models.Settings{}, fmt.Errorf("select settings: %w", err)
	}
	if err := unmarshalJSON(raw, &s.AlertThresholds); err != nil {
		return models.Settings{}, fmt.Errorf("decode thresholds: %w", err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// Upsert updates or inserts the (user, greenhouse) settings row.
func (r *SettingsSQLite) Upsert(ctx context.Context, s models.Settings) (models.Settings, error) {
	raw, err := marshalJSON(s.AlertThresholds)
	if err != nil {
		return models.Settings{}, fmt.Errorf("encode thresholds: %w", err)
	}
	s.UpdatedAt = utcOrNow(s.UpdatedAt)

	if _, err := r.db.ExecContext(ctx, upsertSettingsSQL, s.UserID, s.GreenhouseID, raw, s.UpdatedAt); err != nil {
		return models.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}
	return s, nil
}

// LatestForGreenhouse returns the most recently saved thresholds of any user
// for the greenhouse. No row means every bound is unset.
func (r *SettingsSQLite) LatestForGreenhouse(ctx context.Context, greenhouseID string) (models.Thresholds, error) {
	var (
		t   models.Thresholds
		raw string
	)
	err := r.db.QueryRowContext(ctx, selectLatestThresholdsSQL, greenhouseID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Thresholds{}, nil
		}
		return models.Thresholds{}, fmt.Errorf("select thresholds of %q: %w", greenhouseID, err)
	}
	if err := unmarshalJSON(raw, &t); err != nil {
		return models.Thresholds{}, fmt.Errorf("decode thresholds: %w", err)
	}
	return t, nil
}
