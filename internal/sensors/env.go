// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/bus"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/sim"
)

// Baro is the BMP085 altimeter on its bus, real or simulated. Its methods
// may be called from several goroutines.
type Baro struct {
	mu     sync.Mutex
	source string
	bus    *bus.Bus
	reg    *bus.Dev
	dev    *bmp085.Dev
	sim    *sim.Sensor
}

var _ Sensor = (*Baro)(nil)

// OpenBaro opens the configured bus and brings up the sensor. With mock set
// the bus is an emulated BMP085 following the SIM_* profile.
func OpenBaro(cfg *config.Config, mock bool) (*Baro, error) {
	b := &Baro{source: "baro"}
	if mock {
		so := sim.DefaultOpts
		so.Addr = cfg.BaroI2CAddr
		so.Profile = sim.Ramp(cfg.SimAltitude, cfg.SimClimb)
		so.Noise = cfg.SimNoise
		so.Seed = time.Now().UnixNano()
		b.sim = sim.New(&so)
		b.bus = bus.New(b.sim)
		b.source = "sim"
	} else {
		bb, err := bus.Open(cfg.BaroI2CBus)
		if err != nil {
			return nil, fmt.Errorf("baro: %w", err)
		}
		b.bus = bb
	}

	b.reg = b.bus.Dev(cfg.BaroI2CAddr)
	dev, err := bmp085.New(b.reg, &bmp085.Opts{
		Oversampling: bmp085.Oversampling(cfg.BaroOversampling),
		Smoothing:    cfg.BaroSmoothing,
	})
	if err != nil {
		b.bus.Close()
		return nil, fmt.Errorf("baro: %w", err)
	}
	b.dev = dev

	log.Printf("baro: %s on %s initialized (%s)", dev, b.bus, b.Describe())
	return b, nil
}

// GroundCalibrator builds the ground calibration settings from cfg.
func GroundCalibrator(cfg *config.Config) bmp085.GroundCalibrator {
	return bmp085.GroundCalibrator{
		Samples:     cfg.GroundSamples,
		Threshold:   cfg.GroundThreshold,
		MaxRetries:  cfg.GroundMaxRetries,
		SampleDelay: config.Millis(cfg.GroundSampleDelay),
		SettleDelay: config.Millis(cfg.GroundSettleDelay),
	}
}

// Dev returns the driver.
func (b *Baro) Dev() *bmp085.Dev { return b.dev }

// Bus returns the shared bus, for other devices on it.
func (b *Baro) Bus() *bus.Bus { return b.bus }

// Sim returns the emulated sensor, or nil on real hardware.
func (b *Baro) Sim() *sim.Sensor { return b.sim }

// Close releases the bus.
func (b *Baro) Close() error {
	return b.bus.Close()
}

// Do runs fn with exclusive access to the driver.
func (b *Baro) Do(fn func(d *bmp085.Dev) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.dev)
}

// CalibrateGround runs the ground calibration, logging every attempt.
func (b *Baro) CalibrateGround(ctx context.Context, g bmp085.GroundCalibrator) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g.Progress == nil {
		g.Progress = func(attempt int, candidate, last float64) {
			log.Printf("baro: ground attempt %d: average %.2f m, last sample %.2f m", attempt, candidate, last)
		}
	}
	ground, err := b.dev.CalibrateGround(ctx, &g)
	if err != nil {
		return 0, fmt.Errorf("baro: %w", err)
	}
	log.Printf("baro: ground altitude set to %.2f m", ground)
	return ground, nil
}

// Tick runs one measurement pass.
func (b *Baro) Tick() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev.Measure()
}

// Sample converts the current state of the driver into an env.Sample without
// touching the bus.
func (b *Baro) Sample(t time.Time) env.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return SampleFromSnapshot(b.source, b.dev.Snapshot(), t)
}

// Reading runs one measurement pass and returns the resulting sample.
func (b *Baro) Reading() (env.Sample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Measure(); err != nil {
		return env.Sample{}, fmt.Errorf("baro: %w", err)
	}
	return SampleFromSnapshot(b.source, b.dev.Snapshot(), time.Now()), nil
}

// Describe reports the BMP085 limits at the configured oversampling.
func (b *Baro) Describe() Info {
	oss := b.dev.Opts().Oversampling
	return Info{
		Name:       "BMP085",
		Type:       "pressure",
		Version:    1,
		MinValue:   30000,
		MaxValue:   110000,
		Resolution: resolution(oss),
		MinDelay:   oss.Latency(),
	}
}

// resolution is the RMS noise of one pressure sample at oss, in Pa.
func resolution(oss bmp085.Oversampling) float64 {
	switch oss {
	case bmp085.UltraLowPower:
		return 6
	case bmp085.Standard:
		return 5
	case bmp085.HighResolution:
		return 4
	default:
		return 3
	}
}

// SampleFromSnapshot converts driver state into an env.Sample.
func SampleFromSnapshot(source string, s bmp085.Snapshot, t time.Time) env.Sample {
	return env.Sample{
		Source:           source,
		Time:             t,
		Temperature:      float64(s.Temperature) / 10,
		Pressure:         float64(s.Pressure),
		PressureHPa:      float64(s.Pressure) / 100,
		RawAltitude:      s.RawAltitude,
		FilteredAltitude: s.Filtered,
		GroundAltitude:   s.Ground,
		Altitude:         s.Relative,
		HasPressure:      s.HasPressure,
		GroundSet:        s.GroundSet,
	}
}
