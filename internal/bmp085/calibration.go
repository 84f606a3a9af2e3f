// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmp085

import (
	"encoding/binary"
	"fmt"
)

// Calibration holds the factory coefficients stored in the sensor's EEPROM.
type Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

// LoadCalibration reads the 22-byte calibration block in a single burst.
func LoadCalibration(c Conn) (Calibration, error) {
	var buf [calibLen]byte
	if err := c.ReadReg(regCalib, buf[:]); err != nil {
		return Calibration{}, fmt.Errorf("bmp085: read calibration: %w", err)
	}
	return decodeCalibration(buf[:])
}

func decodeCalibration(b []byte) (Calibration, error) {
	if len(b) < calibLen {
		return Calibration{}, fmt.Errorf("bmp085: calibration block is %d bytes, want %d", len(b), calibLen)
	}
	word := func(i int) uint16 { return binary.BigEndian.Uint16(b[2*i:]) }
	return Calibration{
		AC1: int16(word(0)),
		AC2: int16(word(1)),
		AC3: int16(word(2)),
		AC4: word(3),
		AC5: word(4),
		AC6: word(5),
		B1:  int16(word(6)),
		B2:  int16(word(7)),
		MB:  int16(word(8)),
		MC:  int16(word(9)),
		MD:  int16(word(10)),
	}, nil
}

// Bytes encodes c the way the sensor stores it.
func (c Calibration) Bytes() []byte {
	b := make([]byte, calibLen)
	words := []uint16{
		uint16(c.AC1), uint16(c.AC2), uint16(c.AC3),
		c.AC4, c.AC5, c.AC6,
		uint16(c.B1), uint16(c.B2),
		uint16(c.MB), uint16(c.MC), uint16(c.MD),
	}
	for i, w := range words {
		binary.BigEndian.PutUint16(b[2*i:], w)
	}
	return b
}

// valid rejects blocks that are all zeros or all ones, which is what a
// missing or unpowered device returns.
func (c Calibration) valid() bool {
	b := c.Bytes()
	zero, ones := true, true
	for _, v := range b {
		if v != 0x00 {
			zero = false
		}
		if v != 0xFF {
			ones = false
		}
	}
	return !zero && !ones
}

// DatasheetCalibration is the coefficient set used in the datasheet's worked
// example.
var DatasheetCalibration = Calibration{
	AC1: 408, AC2: -72, AC3: -14383,
	AC4: 32741, AC5: 32757, AC6: 23153,
	B1: 6190, B2: 4,
	MB: -32768, MC: -8711, MD: 2868,
}
