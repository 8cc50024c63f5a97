package service

import (
	"fmt"
	"strconv"

	"greenhouse_control/internal/models"
)

// Evaluate compares every measured field of r against its bound and returns
// one intent per violation. Nil bounds never fire. High is strictly above,
// low strictly below; low is only checked when high did not fire.
func Evaluate(r models.Reading, t models.Thresholds) []models.AlertIntent {
	var out []models.AlertIntent

	base := models.AlertIntent{
		GreenhouseID: r.GreenhouseID,
		SensorType:   r.SensorType,
		DeviceID:     r.DeviceID,
	}
	add := func(typ models.AlertType, sev models.Severity, value, bound float64, msg string) {
		in := base
		in.AlertType = typ
		in.Severity = sev
		in.CurrentValue = value
		in.ThresholdValue = bound
		in.Message = msg
		out = append(out, in)
	}

	if v := r.Temperature; v != nil {
		switch b := t.Temperature; {
		case above(*v, b.High):
			add(models.AlertTemperatureHigh, models.SeverityHigh, *v, *b.High,
				fmt.Sprintf("Temperature is too high: %s°C", num(*v)))
		case below(*v, b.Low):
			add(models.AlertTemperatureLow, models.SeverityHigh, *v, *b.Low,
				fmt.Sprintf("Temperature is too low: %s°C", num(*v)))
		}
	}

	if v := r.Humidity; v != nil {
		switch b := t.Humidity; {
		case above(*v, b.High):
			add(models.AlertHumidityHigh, models.SeverityMedium, *v, *b.High,
				fmt.Sprintf("Humidity is too high: %s%%", num(*v)))
		case below(*v, b.Low):
			add(models.AlertHumidityLow, models.SeverityMedium, *v, *b.Low,
				fmt.Sprintf("Humidity is too low: %s%%", num(*v)))
		}
	}

	if v := r.SoilMoisture; v != nil && below(*v, t.SoilMoisture.Low) {
		add(models.AlertSoilMoistureLow, models.SeverityHigh, *v, *t.SoilMoisture.Low,
			fmt.Sprintf("Soil moisture is too low: %s", num(*v)))
	}

	if v := r.LightIntensity; v != nil && below(*v, t.LightLevel.Low) {
		add(models.AlertLightLevelLow, models.SeverityMedium, *v, *t.LightLevel.Low,
			fmt.Sprintf("Light level is too low: %s", num(*v)))
	}

	return out
}

// EvaluateMalfunction turns a device-reported fault into a critical alert intent.
func EvaluateMalfunction(sig models.MalfunctionSignal) models.AlertIntent {
	name := sig.DeviceName
	if name == "" {
		name = sig.DeviceID
	}
	return models.AlertIntent{
		GreenhouseID: sig.GreenhouseID,
		AlertType:    models.AlertDeviceMalfunction,
		Severity:     models.SeverityCritical,
		Message:      fmt.Sprintf("%s reported a fault: %s", name, sig.Fault),
		SensorType:   models.SensorDevice,
		DeviceID:     sig.DeviceID,
	}
}

// EvaluateOffline is raised by the watchdog for a node that stopped reporting.
// CurrentValue is the silence in minutes, ThresholdValue the allowed silence.
func EvaluateOffline(seen DeviceSilence) models.AlertIntent {
	return models.AlertIntent{
		GreenhouseID:   seen.GreenhouseID,
		AlertType:      models.AlertSensorOffline,
		Severity:       models.SeverityHigh,
		Message:        fmt.Sprintf("Sensor node %s has not reported for %s minutes", seen.DeviceID, num(seen.Silent.Minutes())),
		CurrentValue:   seen.Silent.Minutes(),
		ThresholdValue: seen.Allowed.Minutes(),
		SensorType:     models.SensorDevice,
		DeviceID:       seen.DeviceID,
	}
}

func above(v float64, bound *float64) bool { return bound != nil && v > *bound }
func below(v float64, bound *float64) bool { return bound != nil && v < *bound }

// num prints 42 as "42" and 21.5 as "21.5".
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
