package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"greenhouse_control/internal/models"
)

type captureIngest struct {
	mu       sync.Mutex
	payloads []models.TelemetryPayload
}

func (c *captureIngest) HandleIngest(ctx context.Context, p models.TelemetryPayload) (models.IngestResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return models.IngestResult{}, nil
}

func (c *captureIngest) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestSimulator_PayloadsPassValidation(t *testing.T) {
	sim := NewSimulatorService(&captureIngest{}, "ESP32_SIM", "", nil)
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 24*12; i++ {
		p := sim.next(start.Add(time.Duration(i) * 5 * time.Minute))
		if p.DeviceID != "ESP32_SIM" || p.GreenhouseID != models.DefaultGreenhouseID {
			t.Fatalf("payload identity = %q/%q", p.DeviceID, p.GreenhouseID)
		}
		for _, s := range p.Samples() {
			r := models.NewReading(s, p.GreenhouseID, p.DeviceID)
			if err := ValidateReading(r); err != nil {
				t.Fatalf("tick %d: generated invalid reading: %v", i, err)
			}
		}
	}
}

func TestSimulator_SoilDriesThenIsWatered(t *testing.T) {
	sim := NewSimulatorService(&captureIngest{}, "ESP32_SIM", "g", nil)
	now := time.Now()

	prev := sim.soil
	watered := false
	for i := 0; i < 200; i++ {
		sim.next(now)
		if sim.soil > prev {
			watered = true
			break
		}
		prev = sim.soil
	}
	if !watered {
		t.Fatalf("soil never re-watered, stuck at %.0f", sim.soil)
	}
	if sim.water >= WaterLevelFullCm {
		t.Fatalf("watering should draw from the tank")
	}
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	ing := &captureIngest{}
	sim := NewSimulatorService(ing, "ESP32_SIM", "g", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for ing.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("simulator produced %d payloads", ing.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
