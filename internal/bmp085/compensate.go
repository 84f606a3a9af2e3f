// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmp085

// Sample accumulates raw conversions between two evaluation passes.
type Sample struct {
	Temperature   int32 // UT, 16 bits
	PressureSum   int64 // sum of UP values
	PressureCount int
}

// AddPressure accumulates one raw pressure conversion.
func (s *Sample) AddPressure(up int32) {
	s.PressureSum += int64(up)
	s.PressureCount++
}

// Readings are the compensated values of one evaluation pass.
type Readings struct {
	B5          int32 // temperature intermediate shared with the pressure path
	Temperature int32 // 0.1°C
	Pressure    int32 // Pa
	HasPressure bool
}

// Compensate converts s into true temperature and pressure.
//
// When s holds pressure samples their average is compensated and the
// accumulator is reset. When it holds none only the temperature is computed
// and HasPressure is false.
func (c *Calibration) Compensate(s *Sample, oss Oversampling) Readings {
	b5 := c.b5(s.Temperature)
	r := Readings{B5: b5, Temperature: (b5 + 8) >> 4}
	if s.PressureCount == 0 {
		return r
	}
	up := int32(s.PressureSum / int64(s.PressureCount))
	s.PressureSum = 0
	s.PressureCount = 0

	p, ok := c.truePressure(b5, up, oss)
	if !ok {
		return r
	}
	r.Pressure = p
	r.HasPressure = true
	return r
}

// b5 computes the temperature intermediate from UT.
func (c *Calibration) b5(ut int32) int32 {
	x1 := ((ut - int32(c.AC6)) * int32(c.AC5)) >> 15
	den := x1 + int32(c.MD)
	if den == 0 {
		return x1
	}
	x2 := (int32(c.MC) << 11) / den
	return x1 + x2
}

// truePressure runs the datasheet pressure algorithm. All arithmetic is
// 32-bit and wraps like the reference implementation. It reports false only
// for coefficient sets that would divide by zero.
func (c *Calibration) truePressure(b5, up int32, oss Oversampling) (int32, bool) {
	shift := uint(oss)

	b6 := b5 - 4000
	x1 := (int32(c.B2) * ((b6 * b6) >> 12)) >> 11
	x2 := (int32(c.AC2) * b6) >> 11
	x3 := x1 + x2
	b3 := (((int32(c.AC1)*4 + x3) << shift) + 2) >> 2

	x1 = (int32(c.AC3) * b6) >> 13
	x2 = (int32(c.B1) * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := (uint32(c.AC4) * uint32(x3+32768)) >> 15
	if b4 == 0 {
		return 0, false
	}
	b7 := (uint32(up) - uint32(b3)) * (50000 >> shift)

	var p int32
	if b7 < 0x80000000 {
		p = int32((b7 << 1) / b4)
	} else {
		p = int32((b7 / b4) << 1)
	}

	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	return p + ((x1 + x2 + 3791) >> 4), true
}
