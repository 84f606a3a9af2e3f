// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
)

// surveySource is the part of *bmp085.Dev a ground survey needs.
type surveySource interface {
	bmp085.AltitudeSampler
	Snapshot() bmp085.Snapshot
}

// GroundSurvey records a stationary noise measurement followed by a ground
// calibration run.
type GroundSurvey struct {
	Version   int       `json:"version"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	// Noise phase
	NoiseSamples   int     `json:"noise_samples"`
	MeanPressure   float64 `json:"mean_pressure_pa"`
	PressureStdDev float64 `json:"pressure_stddev_pa"`
	MeanAltitude   float64 `json:"mean_alt_m"`
	AltitudeStdDev float64 `json:"alt_stddev_m"`
	Temperature    float64 `json:"temp_c"`

	// Ground phase
	GroundSamples  int     `json:"ground_samples"`
	Threshold      float64 `json:"threshold_m"`
	Attempts       int     `json:"attempts"`
	Converged      bool    `json:"converged"`
	GroundAltitude float64 `json:"ground_alt_m"`
	LastCandidate  float64 `json:"last_candidate_m"`
	LastSample     float64 `json:"last_sample_m"`

	Confidence float64 `json:"confidence"` // 0..1
}

// Stillness thresholds for the altitude standard deviation, in meters.
const (
	stillStdGood = 0.25
	stillStdBad  = 1.5

	confFloor = 0.05
)

// SurveyProgress receives progress callbacks from RunGroundSurvey. Either
// field may be nil.
type SurveyProgress struct {
	Noise  func(fraction float64)
	Ground func(attempt int, candidate, last float64)
}

// RunGroundSurvey measures noise with noiseSamples pressure samples, then
// runs g, on a device the caller has exclusive access to.
func RunGroundSurvey(ctx context.Context, d *bmp085.Dev, source string, noiseSamples int, g bmp085.GroundCalibrator, p SurveyProgress) (*GroundSurvey, error) {
	r := &GroundSurvey{Version: 1, Source: source, Timestamp: time.Now()}
	if err := surveyNoise(ctx, d, noiseSamples, 0, r, p.Noise); err != nil {
		return nil, err
	}
	if err := surveyGround(ctx, d, g, r, p.Ground); err != nil {
		return nil, err
	}
	r.Confidence = surveyConfidence(r, g.MaxRetries+1)
	return r, nil
}

// surveyConfidence weighs sensor stillness against how quickly the ground
// calibration converged. A survey that did not converge scores the floor.
func surveyConfidence(r *GroundSurvey, maxAttempts int) float64 {
	if !r.Converged {
		return confFloor
	}
	var still float64
	switch {
	case r.AltitudeStdDev <= stillStdGood:
		still = 1
	case r.AltitudeStdDev >= stillStdBad:
		still = confFloor
	default:
		t := (r.AltitudeStdDev - stillStdGood) / (stillStdBad - stillStdGood)
		still = clamp01(1 - 0.95*t)
	}
	speed := 1.0
	if maxAttempts > 1 {
		speed = clamp01(1 - float64(r.Attempts-1)/float64(maxAttempts))
	}
	return clamp01(math.Max(0.6*still+0.4*speed, confFloor))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// surveyNoise takes n pressure samples from src. Temperature-only passes do
// not count as samples. progress, if set, is called with the fraction done.
func surveyNoise(ctx context.Context, src surveySource, n int, delay time.Duration, r *GroundSurvey, progress func(float64)) error {
	if n <= 0 {
		return fmt.Errorf("survey: need at least one noise sample, got %d", n)
	}
	pressures := make([]float64, 0, n)
	altitudes := make([]float64, 0, n)
	var temp float64

	for len(pressures) < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := src.Measure(); err != nil {
			return fmt.Errorf("survey: %w", err)
		}
		s := src.Snapshot()
		temp = float64(s.Temperature) / 10
		if !s.HasPressure || !s.State.AfterPressure() {
			continue
		}
		pressures = append(pressures, float64(s.Pressure))
		altitudes = append(altitudes, s.RawAltitude)
		if progress != nil {
			progress(float64(len(pressures)) / float64(n))
		}
	}

	r.NoiseSamples = n
	r.MeanPressure, r.PressureStdDev = meanStdDev(pressures)
	r.MeanAltitude, r.AltitudeStdDev = meanStdDev(altitudes)
	r.Temperature = temp
	return nil
}

// surveyGround runs g against src without fixing the device's ground
// reference, so a survey can be repeated.
func surveyGround(ctx context.Context, src surveySource, g bmp085.GroundCalibrator, r *GroundSurvey, progress func(attempt int, candidate, last float64)) error {
	r.GroundSamples = g.Samples
	r.Threshold = g.Threshold
	g.Progress = func(attempt int, candidate, last float64) {
		r.Attempts = attempt + 1
		r.LastCandidate = candidate
		r.LastSample = last
		if progress != nil {
			progress(attempt, candidate, last)
		}
	}

	ground, err := g.Run(ctx, src)
	if errors.Is(err, bmp085.ErrCalibrationNotConverged) {
		r.Converged = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("survey: %w", err)
	}
	r.Converged = true
	r.GroundAltitude = ground
	return nil
}

// meanStdDev returns the mean and population standard deviation of v.
func meanStdDev(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	m := sum / float64(len(v))
	var variance float64
	for _, x := range v {
		d := x - m
		variance += d * d
	}
	return m, math.Sqrt(variance / float64(len(v)))
}

// SurveyFileName names a report file for t.
func SurveyFileName(source string, t time.Time) string {
	return fmt.Sprintf("%s_%d_ground_survey.json", source, t.Unix())
}

// WriteGroundSurvey writes r as indented JSON to path.
func WriteGroundSurvey(path string, r *GroundSurvey) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ground survey: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ground survey: %w", err)
	}
	return nil
}
