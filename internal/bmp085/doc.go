// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bmp085 drives a Bosch BMP085/BMP180 barometric pressure sensor and
// turns its raw samples into a ground-referenced altitude.
//
// The device is ticked by its owner, once per control-loop iteration. A tick
// never waits for a whole pressure conversion: temperature and pressure
// conversions are interleaved so each tick reads the result of the conversion
// started by the previous one. One temperature conversion is interleaved with
// every five pressure conversions.
//
// # Registers
//
//	0xAA  22 bytes  calibration block AC1..AC6, B1, B2, MB, MC, MD (big endian)
//	0xF4  control   0x2E temperature, 0x34+(oss<<6) pressure
//	0xF6  data      2 bytes temperature, 3 bytes pressure
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/BST-BMP180-DS000-09.pdf
//
// The worked example on page 15 of the datasheet prints x2=-2344 and b5=2399.
// The integer algorithm truncates to x2=-2343 and b5=2400; both paths still
// end at T=150 (15.0°C) and p=69964 Pa.
package bmp085
