// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim emulates a BMP085 on an I²C bus.
//
// The emulated register file answers the calibration burst, the control
// register and the data register. Conversions latch raw counts that the
// driver's compensation turns back into the temperature and the pressure of
// the configured altitude profile.
package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	regCalib   = 0xAA
	regControl = 0xF4
	regData    = 0xF6
	regChipID  = 0xD0

	chipID = 0x55

	cmdTemperature = 0x2E
	cmdPressure    = 0x34
)

// Profile returns the altitude in meters after elapsed time.
type Profile func(elapsed time.Duration) float64

// Constant holds a fixed altitude.
func Constant(alt float64) Profile {
	return func(time.Duration) float64 { return alt }
}

// Ramp climbs (or descends, for negative rate) from start at rate m/s.
func Ramp(start, rate float64) Profile {
	return func(e time.Duration) float64 { return start + rate*e.Seconds() }
}

// Wave oscillates around base with the given amplitude and period.
func Wave(base, amplitude float64, period time.Duration) Profile {
	return func(e time.Duration) float64 {
		if period <= 0 {
			return base
		}
		return base + amplitude*math.Sin(2*math.Pi*e.Seconds()/period.Seconds())
	}
}

// Opts configures a Sensor.
type Opts struct {
	Addr        uint16
	Calibration bmp085.Calibration
	Temperature float64 // °C
	Profile     Profile
	Noise       float64 // pressure noise standard deviation, Pa
	Seed        int64
}

// DefaultOpts is a sensor at 25 °C sitting at sea level.
var DefaultOpts = Opts{
	Addr:        bmp085.DefaultAddress,
	Calibration: bmp085.DatasheetCalibration,
	Temperature: 25,
	Profile:     Constant(0),
}

var _ i2c.Bus = (*Sensor)(nil)

// Sensor implements i2c.Bus with a single BMP085 attached.
type Sensor struct {
	mu    sync.Mutex
	opts  Opts
	regs  [256]byte
	ptr   byte
	ut    int32
	start time.Time
	rnd   *rand.Rand
	now   func() time.Time

	conversions int
}

// New returns an emulated sensor. The profile clock starts now.
func New(opts *Opts) *Sensor {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Addr == 0 {
		o.Addr = bmp085.DefaultAddress
	}
	if o.Profile == nil {
		o.Profile = Constant(0)
	}
	s := &Sensor{
		opts: o,
		rnd:  rand.New(rand.NewSource(o.Seed)),
		now:  time.Now,
	}
	s.start = s.now()
	copy(s.regs[regCalib:], o.Calibration.Bytes())
	s.regs[regChipID] = chipID
	// The presence probe reads back whatever the pointer addresses after a
	// null command; the emulated part answers with its chip id.
	s.regs[0x00] = chipID
	s.ut = rawTemperature(&o.Calibration, int32(math.Round(o.Temperature*10)))
	return s
}

func (s *Sensor) String() string {
	return fmt.Sprintf("sim-bmp085@0x%02X", s.opts.Addr)
}

// SetSpeed accepts any frequency.
func (s *Sensor) SetSpeed(f physic.Frequency) error {
	return nil
}

// Tx implements i2c.Bus. A one-byte write moves the register pointer, a
// two-byte write stores a register, and reads auto-increment from the pointer.
func (s *Sensor) Tx(addr uint16, w, r []byte) error {
	if addr != s.opts.Addr {
		return fmt.Errorf("sim: no device at 0x%02X", addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(w) > 0 {
		s.ptr = w[0]
		for i, v := range w[1:] {
			s.write(w[0]+byte(i), v)
		}
	}
	for i := range r {
		r[i] = s.regs[s.ptr+byte(i)]
	}
	return nil
}

// Altitude returns the profile altitude right now.
func (s *Sensor) Altitude() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Profile(s.now().Sub(s.start))
}

// Conversions counts the conversions started so far.
func (s *Sensor) Conversions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversions
}

func (s *Sensor) write(reg, v byte) {
	if reg != regControl {
		s.regs[reg] = v
		return
	}
	// Conversions complete immediately, so the start-of-conversion bit
	// reads back clear.
	s.regs[regControl] = v &^ 0x20
	switch {
	case v == cmdTemperature:
		s.conversions++
		s.regs[regData] = byte(s.ut >> 8)
		s.regs[regData+1] = byte(s.ut)
	case v&0x3F == cmdPressure:
		s.conversions++
		oss := bmp085.Oversampling(v >> 6)
		p := bmp085.PressureAt(s.opts.Profile(s.now().Sub(s.start)))
		if s.opts.Noise > 0 {
			p += s.rnd.NormFloat64() * s.opts.Noise
		}
		up := rawPressure(&s.opts.Calibration, s.ut, int32(math.Round(p)), oss)
		raw := uint32(up) << (8 - uint(oss))
		s.regs[regData] = byte(raw >> 16)
		s.regs[regData+1] = byte(raw >> 8)
		s.regs[regData+2] = byte(raw)
	}
}

// rawTemperature finds the smallest UT that compensates to at least target
// (0.1°C). The search starts at UT == AC6, below which the compensation
// divisor can change sign.
func rawTemperature(c *bmp085.Calibration, target int32) int32 {
	lo, hi := int32(c.AC6), int32(0xFFFF)
	for lo < hi {
		mid := lo + (hi-lo)/2
		smp := bmp085.Sample{Temperature: mid}
		if c.Compensate(&smp, bmp085.UltraLowPower).Temperature < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// rawPressure finds the smallest UP that compensates to at least target Pa.
// The search range covers roughly 10 kPa to 190 kPa, where the compensation
// is monotonic.
func rawPressure(c *bmp085.Calibration, ut, target int32, oss bmp085.Oversampling) int32 {
	lo, hi := int32(4096)<<uint(oss), int32(1)<<(16+uint(oss))-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		smp := bmp085.Sample{Temperature: ut}
		smp.AddPressure(mid)
		if c.Compensate(&smp, oss).Pressure < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
