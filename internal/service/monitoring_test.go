package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
)

func TestMonitoringService_LatestReadings(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*3600)
	repo := &fakeReadingRepo{rows: []models.Reading{
		{GreenhouseID: "greenhouse-001", SensorType: models.SensorDHT11, Temperature: models.Float(20), Timestamp: time.Date(2026, 5, 1, 10, 0, 0, 0, loc)},
		{GreenhouseID: "greenhouse-001", SensorType: models.SensorDHT11, Temperature: models.Float(21), Timestamp: time.Date(2026, 5, 1, 11, 0, 0, 0, loc)},
		{GreenhouseID: "greenhouse-001", SensorType: models.SensorLDR, LightIntensity: models.Float(400)},
		{GreenhouseID: "greenhouse-002", SensorType: models.SensorLDR, LightIntensity: models.Float(1)},
	}}
	svc := NewMonitoringService(repo, "", time.Second)

	got, err := svc.LatestReadings(context.Background(), "")
	if err != nil {
		t.Fatalf("LatestReadings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d readings, want one per kind", len(got))
	}
	if *got[0].Temperature != 21 || got[0].Timestamp.Location() != time.UTC {
		t.Fatalf("latest DHT11 = %+v", got[0])
	}
}

func TestMonitoringService_EmptyGreenhouse(t *testing.T) {
	t.Parallel()

	svc := NewMonitoringService(&fakeReadingRepo{}, "", time.Second)
	got, err := svc.LatestReadings(context.Background(), "greenhouse-404")
	if err != nil {
		t.Fatalf("LatestReadings: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestMonitoringService_History(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name      string
		filter    HistoryFilter
		repoErr   error
		wantErr   error
		wantLimit int
	}

	from := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	cases := []testCase{
		{name: "default limit", filter: HistoryFilter{}, wantLimit: defaultReadingLimit},
		{name: "limit capped", filter: HistoryFilter{Limit: 1 << 20}, wantLimit: maxHistoryLimit},
		{name: "inverted range", filter: HistoryFilter{From: from, To: from.Add(-time.Hour)}, wantErr: apperr.ErrBadRequest},
		{name: "unknown sensor", filter: HistoryFilter{SensorType: "GEIGER"}, wantErr: apperr.ErrBadRequest},
		{name: "store failure", filter: HistoryFilter{}, repoErr: errors.New("db down"), wantErr: apperr.ErrInternal},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &fakeReadingRepo{err: tc.repoErr}
			svc := NewMonitoringService(repo, "", time.Second)

			_, err := svc.History(context.Background(), tc.filter)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if repo.lastList.Limit != tc.wantLimit || repo.lastList.GreenhouseID != models.DefaultGreenhouseID {
				t.Fatalf("filter passed to store = %+v", repo.lastList)
			}
		})
	}
}
