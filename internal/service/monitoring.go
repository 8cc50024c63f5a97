package service

import (
	"context"
	"strings"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

const defaultReadingLimit = 100

// MonitoringService serves read-only sensor data.
type MonitoringService struct {
	readings          repository.ReadingRepo
	defaultGreenhouse string
	timeout           time.Duration
}

func NewMonitoringService(readings repository.ReadingRepo, defaultGreenhouse string, timeout time.Duration) *MonitoringService {
	if defaultGreenhouse == "" {
		defaultGreenhouse = models.DefaultGreenhouseID
	}
	return &MonitoringService{readings: readings, defaultGreenhouse: defaultGreenhouse, timeout: timeout}
}

func (s *MonitoringService) greenhouse(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.defaultGreenhouse
}

// LatestReadings returns the newest reading of each sensor kind. A greenhouse
// that never reported yields an empty slice.
func (s *MonitoringService) LatestReadings(ctx context.Context, greenhouseID string) ([]models.Reading, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	rs, err := s.readings.Latest(ctx, s.greenhouse(greenhouseID))
	if err != nil {
		return nil, apperr.Internal("latest readings", err)
	}
	if rs == nil {
		rs = []models.Reading{}
	}
	for i := range rs {
		rs[i].Timestamp = normalizeToUTC(rs[i].Timestamp)
	}
	return rs, nil
}

// History lists readings newest first within the filter.
func (s *MonitoringService) History(ctx context.Context, f HistoryFilter) ([]models.Reading, error) {
	from, to, err := normalizeRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	st := strings.TrimSpace(strings.ToUpper(f.SensorType))
	if st != "" && !models.SensorType(st).Valid() {
		return nil, apperr.BadRequest("unknown sensor type %q", f.SensorType)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	rs, err := s.readings.List(ctx, repository.ReadingFilter{
		GreenhouseID: s.greenhouse(f.GreenhouseID),
		SensorType:   models.SensorType(st),
		DeviceID:     strings.TrimSpace(f.DeviceID),
		From:         from,
		To:           to,
		Limit:        normalizeLimit(f.Limit, defaultReadingLimit),
	})
	if err != nil {
		return nil, apperr.Internal("list readings", err)
	}
	if rs == nil {
		rs = []models.Reading{}
	}
	return rs, nil
}
