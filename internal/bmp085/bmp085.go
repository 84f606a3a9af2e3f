// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmp085

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultAddress is the fixed 7-bit address of the BMP085/BMP180.
	DefaultAddress = 0x77

	regCalib   = 0xAA
	calibLen   = 22
	regControl = 0xF4
	regData    = 0xF6

	cmdNull        = 0x00
	cmdTemperature = 0x2E
	cmdPressure    = 0x34

	presenceDelay      = 100 * time.Millisecond
	temperatureLatency = 5 * time.Millisecond
)

// Test seams.
var (
	sleep = time.Sleep
	now   = time.Now
)

// ErrNotPresent is returned by New when the presence check fails.
var ErrNotPresent = errors.New("bmp085: device not present")

// Oversampling selects pressure resolution against conversion time.
type Oversampling uint8

const (
	UltraLowPower Oversampling = iota
	Standard
	HighResolution
	UltraHighResolution
)

func (o Oversampling) String() string {
	switch o {
	case UltraLowPower:
		return "ultra-low-power"
	case Standard:
		return "standard"
	case HighResolution:
		return "high-resolution"
	case UltraHighResolution:
		return "ultra-high-resolution"
	default:
		return fmt.Sprintf("Oversampling(%d)", uint8(o))
	}
}

// Latency is the maximum pressure conversion time, rounded up to the next ms.
func (o Oversampling) Latency() time.Duration {
	switch o {
	case UltraLowPower:
		return 5 * time.Millisecond
	case Standard:
		return 8 * time.Millisecond
	case HighResolution:
		return 14 * time.Millisecond
	default:
		return 26 * time.Millisecond
	}
}

// Conn is the register interface the driver needs from the bus. Failures,
// including short reads, are reported as errors.
type Conn interface {
	WriteReg(reg, value byte) error
	ReadReg(reg byte, dst []byte) error
	Command(cmd byte) error
	Read(dst []byte) error
}

// Opts configures a Dev.
type Opts struct {
	Oversampling Oversampling
	Smoothing    float64 // low-pass factor in (0, 1]
}

// DefaultOpts matches the reference firmware.
var DefaultOpts = Opts{
	Oversampling: Standard,
	Smoothing:    0.02,
}

// Snapshot is the outcome of the latest evaluation passes.
type Snapshot struct {
	Temperature int32 // 0.1°C
	Pressure    int32 // Pa
	RawAltitude float64
	Filtered    float64
	Ground      float64
	Relative    float64
	HasPressure bool
	GroundSet   bool
	State       State
}

// Dev is a BMP085/BMP180. It is owned by the goroutine that ticks it and is
// not safe for concurrent use.
type Dev struct {
	c    Conn
	opts Opts
	cal  Calibration

	state       State
	sample      Sample
	requestedAt time.Time
	latency     time.Duration

	temperature int32
	pressure    int32
	hasPressure bool
	rawAltitude float64
	filtered    float64
	ground      float64
	groundSet   bool
}

// New checks that a device answers on c, loads its calibration and starts
// the first temperature conversion.
func New(c Conn, opts *Opts) (*Dev, error) {
	if c == nil {
		return nil, errors.New("bmp085: conn is nil")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Oversampling > UltraHighResolution {
		return nil, fmt.Errorf("bmp085: oversampling %d out of range 0-3", opts.Oversampling)
	}
	if !(opts.Smoothing > 0 && opts.Smoothing <= 1) {
		return nil, fmt.Errorf("bmp085: smoothing factor %g out of range (0,1]", opts.Smoothing)
	}

	if err := checkPresence(c); err != nil {
		return nil, err
	}

	cal, err := LoadCalibration(c)
	if err != nil {
		return nil, err
	}
	if !cal.valid() {
		return nil, fmt.Errorf("bmp085: calibration block invalid (% X)", cal.Bytes())
	}

	d := &Dev{c: c, opts: *opts, cal: cal}
	if err := d.request(RequestTemperature); err != nil {
		return nil, err
	}
	return d, nil
}

func checkPresence(c Conn) error {
	if err := c.Command(cmdNull); err != nil {
		return fmt.Errorf("%w: %w", ErrNotPresent, err)
	}
	sleep(presenceDelay)
	var b [1]byte
	if err := c.Read(b[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrNotPresent, err)
	}
	if b[0] == 0 {
		return ErrNotPresent
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("BMP085{%s, α=%g}", d.opts.Oversampling, d.opts.Smoothing)
}

// Calibration returns the coefficients read at construction.
func (d *Dev) Calibration() Calibration {
	return d.cal
}

// Opts returns the options the device was created with.
func (d *Dev) Opts() Opts {
	return d.opts
}

// State returns the scheduler state.
func (d *Dev) State() State {
	return d.state
}

// Tick reads the conversion started by the previous tick and starts the next
// one. It blocks at most for the remainder of that conversion's latency.
//
// On error the scheduler state is left unchanged, so the next tick retries
// the same read.
func (d *Dev) Tick() error {
	d.waitConversion()

	var raw int32
	var err error
	switch d.state.Phase {
	case AwaitingTemperature:
		raw, err = d.readRawTemperature()
	case AwaitingPressure:
		raw, err = d.readRawPressure()
	}
	if err != nil {
		return err
	}

	// The raw value only counts once the next conversion is running; a
	// retry re-reads the same data register.
	next, req := d.state.Step()
	if err := d.request(req); err != nil {
		return err
	}
	if d.state.Phase == AwaitingTemperature {
		d.sample.Temperature = raw
	} else {
		d.sample.AddPressure(raw)
	}
	d.state = next
	return nil
}

// Restart re-issues the conversion the scheduler is waiting on. Use it after
// something else has written the control register.
func (d *Dev) Restart() error {
	req := RequestTemperature
	if d.state.Phase == AwaitingPressure {
		req = RequestPressure
	}
	return d.request(req)
}

// Evaluate compensates the accumulated samples and updates the altitude
// filter. Passes without pressure samples only refresh the temperature.
func (d *Dev) Evaluate() Readings {
	r := d.cal.Compensate(&d.sample, d.opts.Oversampling)
	d.temperature = r.Temperature
	if !r.HasPressure {
		return r
	}
	d.pressure = r.Pressure
	d.hasPressure = true
	d.rawAltitude = Altitude(float64(r.Pressure))
	d.filtered = Smooth(d.rawAltitude, d.filtered, d.opts.Smoothing)
	return r
}

// Measure runs one Tick followed by one Evaluate.
func (d *Dev) Measure() error {
	if err := d.Tick(); err != nil {
		return err
	}
	d.Evaluate()
	return nil
}

// RawAltitude is the unfiltered absolute altitude of the last pressure pass.
func (d *Dev) RawAltitude() float64 {
	return d.rawAltitude
}

// Altitude is the filtered altitude relative to the ground reference.
func (d *Dev) Altitude() float64 {
	return d.filtered - d.ground
}

// Snapshot returns the current readings and altitude state.
func (d *Dev) Snapshot() Snapshot {
	return Snapshot{
		Temperature: d.temperature,
		Pressure:    d.pressure,
		RawAltitude: d.rawAltitude,
		Filtered:    d.filtered,
		Ground:      d.ground,
		Relative:    d.filtered - d.ground,
		HasPressure: d.hasPressure,
		GroundSet:   d.groundSet,
		State:       d.state,
	}
}

// CalibrateGround warms the scheduler up and records the converged ground
// altitude as the zero reference. It can only succeed once per Dev.
func (d *Dev) CalibrateGround(ctx context.Context, g *GroundCalibrator) (float64, error) {
	if d.groundSet {
		return d.ground, fmt.Errorf("bmp085: ground altitude already set to %.2f m", d.ground)
	}
	if g == nil {
		g = &DefaultGroundCalibrator
	}

	// First pass reads the temperature, second the first pressure sample.
	if err := d.Measure(); err != nil {
		return 0, fmt.Errorf("bmp085: ground warm-up: %w", err)
	}
	if err := wait(ctx, d.opts.Oversampling.Latency()); err != nil {
		return 0, err
	}
	if err := d.Measure(); err != nil {
		return 0, fmt.Errorf("bmp085: ground warm-up: %w", err)
	}

	ground, err := g.Run(ctx, d)
	if err != nil {
		return 0, err
	}
	d.ground = ground
	d.groundSet = true
	d.filtered = ground
	return ground, nil
}

// Sense runs one measurement pass and reports it in periph units. Pressure
// is left untouched until the first pressure pass.
func (d *Dev) Sense(e *physic.Env) error {
	if err := d.Measure(); err != nil {
		return err
	}
	e.Temperature = physic.Temperature(d.temperature)*100*physic.MilliCelsius + physic.ZeroCelsius
	if d.hasPressure {
		e.Pressure = physic.Pressure(d.pressure) * physic.Pascal
	}
	return nil
}

func (d *Dev) request(r Request) error {
	cmd := byte(cmdTemperature)
	latency := temperatureLatency
	if r == RequestPressure {
		cmd = cmdPressure + byte(d.opts.Oversampling)<<6
		latency = d.opts.Oversampling.Latency()
	}
	if err := d.c.WriteReg(regControl, cmd); err != nil {
		return fmt.Errorf("bmp085: request %s conversion: %w", r, err)
	}
	d.requestedAt = now()
	d.latency = latency
	return nil
}

func (d *Dev) waitConversion() {
	if rem := d.latency - now().Sub(d.requestedAt); rem > 0 {
		sleep(rem)
	}
}

func (d *Dev) readRawTemperature() (int32, error) {
	var b [2]byte
	if err := d.c.ReadReg(regData, b[:]); err != nil {
		return 0, fmt.Errorf("bmp085: read raw temperature: %w", err)
	}
	return int32(b[0])<<8 | int32(b[1]), nil
}

func (d *Dev) readRawPressure() (int32, error) {
	var b [3]byte
	if err := d.c.ReadReg(regData, b[:]); err != nil {
		return 0, fmt.Errorf("bmp085: read raw pressure: %w", err)
	}
	raw := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return int32(raw >> (8 - uint(d.opts.Oversampling))), nil
}
