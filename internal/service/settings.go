package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

type SettingsService struct {
	repo              repository.SettingsRepo
	defaultGreenhouse string
	timeout           time.Duration
}

func NewSettingsService(repo repository.SettingsRepo, defaultGreenhouse string, timeout time.Duration) *SettingsService {
	if defaultGreenhouse == "" {
		defaultGreenhouse = models.DefaultGreenhouseID
	}
	return &SettingsService{repo: repo, defaultGreenhouse: defaultGreenhouse, timeout: timeout}
}

func (s *SettingsService) greenhouse(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultGreenhouse
}

// GetThresholds returns the user's thresholds for the greenhouse. A user who
// never saved any gets an all-unset record.
func (s *SettingsService) GetThresholds(ctx context.Context, userID int, greenhouseID string) (models.Settings, error) {
	gh := s.greenhouse(greenhouseID)

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.repo.Get(ctx, userID, gh)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Settings{UserID: userID, GreenhouseID: gh}, nil
	}
	if err != nil {
		return models.Settings{}, apperr.Internal("load settings", err)
	}
	return st, nil
}

// SaveThresholds replaces the user's thresholds. They take effect on the next
// ingest for the greenhouse.
func (s *SettingsService) SaveThresholds(ctx context.Context, userID int, greenhouseID string, t models.Thresholds) (models.Settings, error) {
	if err := validateThresholds(t); err != nil {
		return models.Settings{}, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.repo.Upsert(ctx, models.Settings{
		UserID:          userID,
		GreenhouseID:    s.greenhouse(greenhouseID),
		AlertThresholds: t,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return models.Settings{}, apperr.Internal("save settings", err)
	}
	return st, nil
}

func validateThresholds(t models.Thresholds) error {
	check := func(name string, b models.Bound) error {
		if b.High != nil && b.Low != nil && *b.Low > *b.High {
			return apperr.Validation("%s: low %s is above high %s", name, num(*b.Low), num(*b.High))
		}
		return nil
	}
	if err := check("temperature", t.Temperature); err != nil {
		return err
	}
	return check("humidity", t.Humidity)
}
