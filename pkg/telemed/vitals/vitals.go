// Package vitals implements the simulated patient telemetry model: a small
// continuous-state system that drifts toward homeostatic targets with random
// jitter, plus threshold-based alert evaluation.
package vitals

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Homeostatic targets and physiological limits.
const (
	targetHeartRate   = 75.0
	targetTemperature = 36.5
	targetSpO2        = 98.0

	minHeartRate = 40
	maxHeartRate = 180
	minTemp      = 35.0
	maxTemp      = 42.0
	minSpO2      = 80
	maxSpO2      = 100

	nominalSystolic  = 120
	nominalDiastolic = 80
)

// Record is one patient's telemetry state.
type Record struct {
	Name        string  `json:"name"`
	HeartRate   int     `json:"heart_rate"`
	Temperature float64 `json:"temperature"`
	SpO2        int     `json:"spo2"`
	Systolic    int     `json:"systolic"`
	Diastolic   int     `json:"diastolic"`

	// LastUpdate and LastAlert are unix seconds. LastAlert zero means the
	// next evaluation may alert immediately.
	LastUpdate int64 `json:"last_update"`
	LastAlert  int64 `json:"last_alert"`
}

// NewRecord returns a stable patient at nominal values.
func NewRecord(name string, now time.Time) *Record {
	return &Record{
		Name:        name,
		HeartRate:   int(targetHeartRate),
		Temperature: targetTemperature,
		SpO2:        int(targetSpO2),
		Systolic:    nominalSystolic,
		Diastolic:   nominalDiastolic,
		LastUpdate:  now.Unix(),
	}
}

// Thresholds are the alerting limits.
type Thresholds struct {
	MaxHeartRate   float64
	MaxTemperature float64
	MinSpO2        float64
}

// Simulator advances patient records. The rng is injectable so tests can be
// deterministic; a nil rng uses a time-seeded one.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator returns a Simulator using rng, or a time-seeded source when nil.
func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng}
}

// Advance moves each vital a fixed fraction of the distance toward its
// homeostatic target, applies bounded jitter, clamps to physiological limits
// and stamps LastUpdate.
func (s *Simulator) Advance(r *Record, now time.Time) {
	hr := float64(r.HeartRate)
	hr += (targetHeartRate - hr) * 0.1
	r.HeartRate = clampInt(int(hr)+s.intn(-2, 2), minHeartRate, maxHeartRate)

	temp := r.Temperature + (targetTemperature-r.Temperature)*0.1
	temp = round1(temp + s.uniform(-0.1, 0.1))
	r.Temperature = clampFloat(temp, minTemp, maxTemp)

	spo2 := float64(r.SpO2)
	spo2 += (targetSpO2 - spo2) * 0.2
	r.SpO2 = clampInt(int(spo2)+s.intn(-1, 1), minSpO2, maxSpO2)

	r.Systolic += s.intn(-2, 2)
	r.Diastolic += s.intn(-2, 2)

	r.LastUpdate = now.Unix()
}

// Evaluate returns the alert lines for vitals currently over their thresholds.
// Empty when the patient is stable.
func Evaluate(r *Record, t Thresholds) []string {
	var alerts []string
	if float64(r.HeartRate) > t.MaxHeartRate {
		alerts = append(alerts, fmt.Sprintf("💓 Taquicardia: %d bpm", r.HeartRate))
	}
	if r.Temperature > t.MaxTemperature {
		alerts = append(alerts, fmt.Sprintf("🌡️ Fiebre Alta: %.1f°C", r.Temperature))
	}
	if float64(r.SpO2) < t.MinSpO2 {
		alerts = append(alerts, fmt.Sprintf("🫁 Hipoxia: %d%%", r.SpO2))
	}
	return alerts
}

// Crisis pushes the record into an alerting regime and clears the alert timer
// so the next sweep fires immediately.
func Crisis(r *Record) {
	r.HeartRate = 145
	r.SpO2 = 88
	r.Temperature = 39.2
	r.LastAlert = 0
}

// Stabilize snaps all vitals back to nominal, including blood pressure.
func Stabilize(r *Record) {
	r.HeartRate = int(targetHeartRate)
	r.Temperature = targetTemperature
	r.SpO2 = int(targetSpO2)
	r.Systolic = nominalSystolic
	r.Diastolic = nominalDiastolic
}

// Reset snaps the core vitals to nominal and clears the alert timer.
func Reset(r *Record) {
	r.HeartRate = int(targetHeartRate)
	r.Temperature = targetTemperature
	r.SpO2 = int(targetSpO2)
	r.LastAlert = 0
}

// Stable reports whether the record looks healthy at the coarse level used by
// the patient overview listing.
func Stable(r *Record) bool {
	return r.HeartRate <= 100 && r.SpO2 >= 94
}

// intn returns a uniform integer in [lo, hi].
func (s *Simulator) intn(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

// uniform returns a uniform float in [lo, hi).
func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
