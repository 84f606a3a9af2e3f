// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmp085

import "math"

const (
	// SeaLevelPressure is the ISA standard pressure in Pa.
	SeaLevelPressure = 101325.0

	altitudeScale    = 44330.0
	altitudeExponent = 5.255
)

// Altitude converts a pressure in Pa into an absolute altitude in meters
// using the international barometric formula.
func Altitude(pressure float64) float64 {
	return altitudeScale * (1 - math.Pow(pressure/SeaLevelPressure, 1/altitudeExponent))
}

// PressureAt is the inverse of Altitude.
func PressureAt(altitude float64) float64 {
	return SeaLevelPressure * math.Pow(1-altitude/altitudeScale, altitudeExponent)
}

// Smooth is a first order low-pass filter. alpha is in (0, 1]; 1 passes
// current through untouched.
func Smooth(current, previous, alpha float64) float64 {
	if alpha != 1 {
		return previous*(1-alpha) + current*alpha
	}
	return current
}
