// Package scorer turns raw environmental metrics into a Flow Index and an
// alert classification. Everything here is pure: no I/O, no clock, no state.
package scorer

import (
	"math"
	"strings"
)

// Flow Index weights. They must sum to 1.0.
const (
	weightCO2     = 0.4
	weightNoise   = 0.3
	weightThermal = 0.3
)

// Sub-score ranges. Values at or below the lower bound score 100, values at
// or above the upper bound score 0.
const (
	CO2BestPPM   = 400.0
	CO2WorstPPM  = 1500.0
	NoiseBestDB  = 30.0
	NoiseWorstDB = 70.0

	IdealTemperature     = 22.0
	TemperatureTolerance = 6.0
)

// Alert thresholds, evaluated on raw values.
const (
	CO2AlertPPM      = 1000.0
	NoiseAlertDB     = 60.0
	HighTemperatureC = 26.0
	LowTemperatureC  = 18.0
)

// Alert tags and statuses.
const (
	StatusOK    = "OK"
	AlertPrefix = "ALERT_"

	TagCO2     = "CO2"
	TagNoise   = "NOISE"
	TagThermal = "THERMAL"
)

// Metrics holds the raw values the scorer looks at. A nil or NaN field is
// treated as missing.
type Metrics struct {
	CO2         *float64
	Noise       *float64
	Temperature *float64
}

// Empty reports whether none of the scored metrics carries a value.
func (m Metrics) Empty() bool {
	_, co2 := value(m.CO2)
	_, noise := value(m.Noise)
	_, temp := value(m.Temperature)

	return !co2 && !noise && !temp
}

// Result is the full scoring output for one reading.
type Result struct {
	FlowIndex   int
	AlertStatus string

	CO2Score     float64
	NoiseScore   float64
	ThermalScore float64
}

// Score computes every derived field for m.
func Score(m Metrics) Result {
	co2 := CO2Score(m.CO2)
	noise := NoiseScore(m.Noise)
	thermal := ThermalScore(m.Temperature)

	return Result{
		FlowIndex:    combine(co2, noise, thermal),
		AlertStatus:  AlertStatus(m),
		CO2Score:     co2,
		NoiseScore:   noise,
		ThermalScore: thermal,
	}
}

// FlowIndex blends the three sub-scores into an integer in [0, 100].
func FlowIndex(m Metrics) int {
	return combine(CO2Score(m.CO2), NoiseScore(m.Noise), ThermalScore(m.Temperature))
}

// CO2Score maps a CO2 concentration in ppm onto [0, 100]. Missing input
// scores 100.
func CO2Score(ppm *float64) float64 {
	return lowerIsBetter(ppm, CO2BestPPM, CO2WorstPPM)
}

// NoiseScore maps a noise level in dB onto [0, 100]. Missing input scores 100.
func NoiseScore(db *float64) float64 {
	return lowerIsBetter(db, NoiseBestDB, NoiseWorstDB)
}

// ThermalScore is 100 at the ideal temperature and drops linearly to 0 at
// TemperatureTolerance degrees away from it. Missing input scores 100.
func ThermalScore(celsius *float64) float64 {
	t, ok := value(celsius)
	if !ok {
		return 100
	}

	delta := math.Abs(t - IdealTemperature)
	return 100 * (1 - clamp01(delta/TemperatureTolerance))
}

// AlertStatus classifies m against the raw thresholds. Tags are appended in
// the fixed order CO2, NOISE, THERMAL.
func AlertStatus(m Metrics) string {
	var tags []string

	if co2, ok := value(m.CO2); ok && co2 >= CO2AlertPPM {
		tags = append(tags, TagCO2)
	}
	if noise, ok := value(m.Noise); ok && noise >= NoiseAlertDB {
		tags = append(tags, TagNoise)
	}
	if temp, ok := value(m.Temperature); ok && (temp >= HighTemperatureC || temp <= LowTemperatureC) {
		tags = append(tags, TagThermal)
	}

	if len(tags) == 0 {
		return StatusOK
	}

	return AlertPrefix + strings.Join(tags, "_")
}

// roundingSlack absorbs float error in the weighted sum so an exact .5
// still rounds up.
const roundingSlack = 1e-9

func combine(co2, noise, thermal float64) int {
	blended := weightCO2*co2 + weightNoise*noise + weightThermal*thermal
	return int(math.Floor(blended + 0.5 + roundingSlack))
}

func lowerIsBetter(v *float64, best, worst float64) float64 {
	x, ok := value(v)
	if !ok {
		return 100
	}

	return 100 * (1 - clamp01((x-best)/(worst-best)))
}

func value(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) {
		return 0, false
	}
	return *v, true
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
