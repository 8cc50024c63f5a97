package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
)

// ----------- Simulation constants -----------
const (
	BaseTempC        = 24.0 // mid-day greenhouse temperature °C
	TempSwingC       = 8.0  // amplitude of the daily temperature curve
	BaseHumidity     = 60.0 // %
	HumiditySwing    = 15.0
	SoilDryPerTick   = 15.0   // raw ADC units lost per tick
	SoilWetRaw       = 3200.0 // right after watering
	SoilDryRaw       = 1200.0 // below this the simulator waters again
	MaxLightRaw      = 3500.0
	WaterLevelFullCm = 30.0
	NoiseFraction    = 0.02
)

type ingester interface {
	HandleIngest(ctx context.Context, p models.TelemetryPayload) (models.IngestResult, error)
}

// SimulatorService generates ESP32-style telemetry for development setups
// without hardware.
type SimulatorService struct {
	ingest       ingester
	deviceID     string
	greenhouseID string
	log          *logger.Logger
	rnd          *rand.Rand

	soil  float64
	water float64
}

// NewSimulatorService returns a simulator with defaults.
func NewSimulatorService(ingest ingester, deviceID, greenhouseID string, log *logger.Logger) *SimulatorService {
	if log == nil {
		log = logger.Nop()
	}
	if greenhouseID == "" {
		greenhouseID = models.DefaultGreenhouseID
	}
	return &SimulatorService{
		ingest:       ingest,
		deviceID:     deviceID,
		greenhouseID: greenhouseID,
		log:          log,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		soil:         SoilWetRaw,
		water:        WaterLevelFullCm,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p := s.next(now)
			if _, err := s.ingest.HandleIngest(ctx, p); err != nil {
				s.log.Warnw("simulator_ingest_failed", "device_id", s.deviceID, "err", err)
			}
		}
	}
}

// next builds the payload for the given wall time and advances the
// simulated soil and tank state.
func (s *SimulatorService) next(now time.Time) models.TelemetryPayload {
	// 0 at midnight, 1 at noon
	day := (1 - math.Cos(2*math.Pi*dayFraction(now))) / 2

	temp := BaseTempC - TempSwingC/2 + TempSwingC*day
	hum := BaseHumidity + HumiditySwing/2 - HumiditySwing*day
	light := MaxLightRaw * day

	s.soil -= SoilDryPerTick
	if s.soil < SoilDryRaw {
		s.soil = SoilWetRaw
		s.water = math.Max(s.water-1, 1)
	}

	return models.TelemetryPayload{
		DeviceID:       s.deviceID,
		GreenhouseID:   s.greenhouseID,
		Temperature:    models.Float(round1(s.noisy(temp))),
		Humidity:       models.Float(round1(clamp(s.noisy(hum), 0, 100))),
		SoilMoisture:   models.Float(math.Round(s.noisy(s.soil))),
		LightIntensity: models.Float(math.Round(math.Max(s.noisy(light), 0))),
		WaterLevel:     models.Float(s.water),
	}
}

func (s *SimulatorService) noisy(v float64) float64 {
	return v * (1 + NoiseFraction*(2*s.rnd.Float64()-1))
}

func dayFraction(t time.Time) float64 {
	h, m, sec := t.Clock()
	return float64(h*3600+m*60+sec) / 86400
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
