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

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

type EventLogService struct {
	logRepo repository.ControlLogRepo
	timeout time.Duration
}

func NewEventLogService(logRepo repository.ControlLogRepo, timeout time.Duration) *EventLogService {
	return &EventLogService{logRepo: logRepo, timeout: timeout}
}

var errInvalidTimeRange = errors.New("invalid time range: from must be <= to")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeSource trims spaces and lowercases the source filter.
func normalizeSource(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// normalizeRange validates the time range and returns it in UTC.
func normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = normalizeToUTC(from), normalizeToUTC(to)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, apperr.BadRequest("%s", errInvalidTimeRange)
	}
	return from, to, nil
}

func normalizeLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

func validSource(s string) bool {
	switch models.ControlSource(s) {
	case models.SourceManual, models.SourceAutomation, models.SourceIoTDevice, models.SourceSchedule:
		return true
	}
	return false
}

// List returns control-log entries newest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ControlLogEntry, error) {
	from, to, err := normalizeRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	src := normalizeSource(f.Source)
	if src != "" && !validSource(src) {
		return nil, apperr.BadRequest("unknown control source %q", f.Source)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.logRepo.List(ctx, repository.LogFilter{
		GreenhouseID: strings.TrimSpace(f.GreenhouseID),
		DeviceID:     strings.TrimSpace(f.DeviceID),
		Source:       models.ControlSource(src),
		From:         from,
		To:           to,
		Limit:        normalizeLimit(f.Limit, defaultHistoryLimit),
	})
	if err != nil {
		return nil, apperr.Internal("list control log", err)
	}
	if entries == nil {
		entries = []models.ControlLogEntry{}
	}
	return entries, nil
}

// withStoreTimeout bounds a store call. A non-positive timeout only adds cancellation.
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
