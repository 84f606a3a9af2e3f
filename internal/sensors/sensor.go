// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/env"
)

// Sensor is a source of environmental samples that can describe itself.
type Sensor interface {
	Reading() (env.Sample, error)
	Describe() Info
}

// Info describes a sensor's identity and limits.
type Info struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"` // "pressure"
	Version    int           `json:"version"`
	MinValue   float64       `json:"min_value"`  // Pa
	MaxValue   float64       `json:"max_value"`  // Pa
	Resolution float64       `json:"resolution"` // Pa
	MinDelay   time.Duration `json:"min_delay"`  // between pressure samples
}

func (i Info) String() string {
	return fmt.Sprintf("%s v%d (%s, %.0f-%.0f Pa, %.2f Pa resolution, %v min delay)",
		i.Name, i.Version, i.Type, i.MinValue, i.MaxValue, i.Resolution, i.MinDelay)
}
