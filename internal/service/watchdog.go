package service

import (
	"context"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"
)

// DeviceSilence describes a sensor node that stopped reporting.
type DeviceSilence struct {
	DeviceID     string
	GreenhouseID string
	Silent       time.Duration
	Allowed      time.Duration
}

type alertRaiser interface {
	RaiseAlert(ctx context.Context, in models.AlertIntent) (models.Alert, error)
}

// Watchdog raises one SENSOR_OFFLINE alert per silent node. A node is
// re-armed once it reports again.
type Watchdog struct {
	readings     repository.ReadingRepo
	alerts       alertRaiser
	offlineAfter time.Duration
	timeout      time.Duration
	log          *logger.Logger
	now          func() time.Time

	// last_seen of the report that was flagged, per device
	flagged map[string]time.Time
}

func NewWatchdog(readings repository.ReadingRepo, alerts alertRaiser, offlineAfter, timeout time.Duration, log *logger.Logger) *Watchdog {
	if log == nil {
		log = logger.Nop()
	}
	return &Watchdog{
		readings:     readings,
		alerts:       alerts,
		offlineAfter: offlineAfter,
		timeout:      timeout,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
		flagged:      make(map[string]time.Time),
	}
}

// Run checks at the given interval until ctx is canceled.
func (w *Watchdog) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.Check(ctx); err != nil {
				w.log.Warnw("watchdog_check_failed", "err", err)
			}
		}
	}
}

// Check runs one pass and returns the nodes newly flagged offline.
func (w *Watchdog) Check(ctx context.Context) ([]DeviceSilence, error) {
	sctx, cancel := withStoreTimeout(ctx, w.timeout)
	seen, err := w.readings.LastSeen(sctx)
	cancel()
	if err != nil {
		return nil, err
	}

	now := w.now()
	var out []DeviceSilence
	for _, s := range seen {
		if at, ok := w.flagged[s.DeviceID]; ok {
			if s.LastSeen.After(at) {
				delete(w.flagged, s.DeviceID)
			} else {
				continue
			}
		}
		silent := now.Sub(s.LastSeen)
		if silent < w.offlineAfter {
			continue
		}
		ds := DeviceSilence{
			DeviceID:     s.DeviceID,
			GreenhouseID: s.GreenhouseID,
			Silent:       silent.Truncate(time.Minute),
			Allowed:      w.offlineAfter,
		}
		if _, err := w.alerts.RaiseAlert(ctx, EvaluateOffline(ds)); err != nil {
			w.log.Errorw("watchdog_alert_failed", "device_id", s.DeviceID, "err", err)
			continue
		}
		w.log.Infow("sensor_offline", "device_id", s.DeviceID, "greenhouse_id", s.GreenhouseID, "silent", ds.Silent)
		w.flagged[s.DeviceID] = s.LastSeen
		out = append(out, ds)
	}
	return out, nil
}
