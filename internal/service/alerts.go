package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
)

const defaultStatsHours = 24

// RoomNotifier emits room events for changes made outside the ingest path.
// *Dispatcher implements it.
type RoomNotifier interface {
	Persisted(ctx context.Context, greenhouseID string, store func(ctx context.Context) (string, any, error)) error
	RaiseAlert(ctx context.Context, in models.AlertIntent) (models.Alert, error)
}

type AlertService struct {
	repo              repository.AlertRepo
	rooms             RoomNotifier
	defaultGreenhouse string
	timeout           time.Duration
	now               func() time.Time
}

func NewAlertService(repo repository.AlertRepo, rooms RoomNotifier, defaultGreenhouse string, timeout time.Duration) *AlertService {
	if defaultGreenhouse == "" {
		defaultGreenhouse = models.DefaultGreenhouseID
	}
	return &AlertService{
		repo:              repo,
		rooms:             rooms,
		defaultGreenhouse: defaultGreenhouse,
		timeout:           timeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (s *AlertService) greenhouse(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultGreenhouse
}

func (s *AlertService) ListAlerts(ctx context.Context, f repository.AlertFilter) ([]models.Alert, error) {
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, apperr.BadRequest("unknown severity %q", f.Severity)
	}
	f.GreenhouseID = s.greenhouse(f.GreenhouseID)
	f.Limit = normalizeLimit(f.Limit, defaultHistoryLimit)

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	as, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list alerts", err)
	}
	if as == nil {
		as = []models.Alert{}
	}
	return as, nil
}

// ActiveAlerts lists the unresolved alerts of a greenhouse.
func (s *AlertService) ActiveAlerts(ctx context.Context, greenhouseID string) ([]models.Alert, error) {
	unresolved := false
	return s.ListAlerts(ctx, repository.AlertFilter{
		GreenhouseID: greenhouseID,
		Resolved:     &unresolved,
		Limit:        maxHistoryLimit,
	})
}

// ResolveAlert marks an alert resolved and broadcasts alertResolved. An
// alert that is already resolved is left untouched and ErrAlreadyResolved
// is returned.
func (s *AlertService) ResolveAlert(ctx context.Context, id, by, actionTaken string) (models.Alert, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Alert{}, apperr.BadRequest("alert id is required")
	}

	gctx, cancel := withStoreTimeout(ctx, s.timeout)
	current, err := s.repo.Get(gctx, id)
	cancel()
	if err != nil {
		return models.Alert{}, apperr.Internal("load alert", err)
	}
	if current.IsResolved {
		return current, apperr.ErrAlreadyResolved
	}

	var resolved models.Alert
	err = s.rooms.Persisted(ctx, current.GreenhouseID, func(ctx context.Context) (string, any, error) {
		a, err := s.repo.Resolve(ctx, id, by, actionTaken, s.now())
		// a lost race still returns the stored alert
		resolved = a
		if err != nil {
			return "", nil, err
		}
		return realtime.EventAlertResolved, a, nil
	})
	if errors.Is(err, apperr.ErrAlreadyResolved) {
		return resolved, apperr.ErrAlreadyResolved
	}
	if err != nil {
		return models.Alert{}, apperr.Internal("resolve alert", err)
	}
	return resolved, nil
}

// CreateAlert records a manually raised alert and broadcasts it.
func (s *AlertService) CreateAlert(ctx context.Context, in models.AlertIntent) (models.Alert, error) {
	if !in.AlertType.Valid() {
		return models.Alert{}, apperr.BadRequest("unknown alert type %q", in.AlertType)
	}
	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	}
	if !in.Severity.Valid() {
		return models.Alert{}, apperr.BadRequest("unknown severity %q", in.Severity)
	}
	if strings.TrimSpace(in.Message) == "" {
		return models.Alert{}, apperr.BadRequest("message is required")
	}
	in.GreenhouseID = s.greenhouse(in.GreenhouseID)
	return s.rooms.RaiseAlert(ctx, in)
}

// AlertStats counts alerts raised in the last hours.
func (s *AlertService) AlertStats(ctx context.Context, greenhouseID string, hours int) (models.AlertStats, error) {
	if hours <= 0 {
		hours = defaultStatsHours
	}
	since := s.now().Add(-time.Duration(hours) * time.Hour)

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.repo.Stats(ctx, s.greenhouse(greenhouseID), since)
	if err != nil {
		return models.AlertStats{}, apperr.Internal("alert stats", err)
	}
	return st, nil
}

func (s *AlertService) DeleteAlert(ctx context.Context, id string) error {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Internal("delete alert", err)
	}
	return nil
}
