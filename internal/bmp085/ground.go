// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmp085

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrCalibrationNotConverged is returned when the ground altitude did not
// settle within the allowed number of attempts.
var ErrCalibrationNotConverged = errors.New("bmp085: ground calibration did not converge")

// AltitudeSampler runs one measurement pass and exposes the resulting raw
// altitude. *Dev implements it.
type AltitudeSampler interface {
	Measure() error
	RawAltitude() float64
}

// GroundCalibrator averages raw altitude samples until the average agrees
// with the most recent sample.
type GroundCalibrator struct {
	Samples     int           // samples per attempt
	Threshold   float64       // meters between last sample and average
	MaxRetries  int           // attempts after the first one
	SampleDelay time.Duration // before every sample
	SettleDelay time.Duration // before every retry

	// Progress, if set, is called after every attempt.
	Progress func(attempt int, candidate, last float64)
}

// DefaultGroundCalibrator matches the timing of the reference firmware.
var DefaultGroundCalibrator = GroundCalibrator{
	Samples:     25,
	Threshold:   10,
	MaxRetries:  50,
	SampleDelay: 12 * time.Millisecond,
	SettleDelay: 26 * time.Millisecond,
}

// Run returns the converged ground altitude.
func (g *GroundCalibrator) Run(ctx context.Context, s AltitudeSampler) (float64, error) {
	if g.Samples <= 0 {
		return 0, fmt.Errorf("bmp085: ground calibration needs at least one sample, got %d", g.Samples)
	}
	if g.MaxRetries < 0 {
		return 0, fmt.Errorf("bmp085: negative ground calibration retry limit %d", g.MaxRetries)
	}

	var candidate, last float64
	for attempt := 0; attempt <= g.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, g.SettleDelay); err != nil {
				return 0, err
			}
		}

		var sum float64
		for i := 0; i < g.Samples; i++ {
			if err := wait(ctx, g.SampleDelay); err != nil {
				return 0, err
			}
			if err := s.Measure(); err != nil {
				return 0, fmt.Errorf("bmp085: ground sample %d: %w", i, err)
			}
			last = s.RawAltitude()
			sum += last
		}
		candidate = sum / float64(g.Samples)

		if g.Progress != nil {
			g.Progress(attempt, candidate, last)
		}
		if math.Abs(last-candidate) <= g.Threshold {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w after %d attempts (average %.2f m, last sample %.2f m)",
		ErrCalibrationNotConverged, g.MaxRetries+1, candidate, last)
}

// wait sleeps for d unless ctx is done first.
func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
