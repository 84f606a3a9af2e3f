// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package althold turns ground-referenced altitude samples into a climb
// command with a PID loop.
package althold

import (
	"time"

	"github.com/felixge/pidctrl"

	"github.com/relabs-tech/baro_altimeter/internal/env"
)

// Gains configures the controller.
type Gains struct {
	Kp, Ki, Kd float64
	Min, Max   float64 // output limits
}

// Command is the controller output for one sample.
type Command struct {
	Time     time.Time `json:"time"`
	Target   float64   `json:"target_m"`
	Altitude float64   `json:"alt_m"`
	Error    float64   `json:"error_m"`
	Output   float64   `json:"output"`
}

// Controller holds altitude at a target above the ground reference.
type Controller struct {
	pid      *pidctrl.PIDController
	target   float64
	fallback time.Duration
	last     time.Time
}

// New returns a controller. fallback is the time step assumed for the first
// sample and for samples without a usable timestamp.
func New(g Gains, target float64, fallback time.Duration) *Controller {
	pid := pidctrl.NewPIDController(g.Kp, g.Ki, g.Kd)
	pid.SetOutputLimits(g.Min, g.Max)
	pid.Set(target)
	return &Controller{pid: pid, target: target, fallback: fallback}
}

// SetTarget changes the altitude to hold, in meters above ground.
func (c *Controller) SetTarget(target float64) {
	c.target = target
	c.pid.Set(target)
}

// Target returns the altitude being held.
func (c *Controller) Target() float64 {
	return c.target
}

// Step feeds one sample into the loop. Samples taken before the ground
// reference is set, or without pressure, are ignored.
func (c *Controller) Step(s env.Sample) (Command, bool) {
	if !s.GroundSet || !s.HasPressure {
		return Command{}, false
	}

	dt := c.fallback
	if !c.last.IsZero() && s.Time.After(c.last) {
		dt = s.Time.Sub(c.last)
	}
	if !s.Time.IsZero() {
		c.last = s.Time
	}

	out := c.pid.UpdateDuration(s.Altitude, dt)
	return Command{
		Time:     s.Time,
		Target:   c.target,
		Altitude: s.Altitude,
		Error:    c.target - s.Altitude,
		Output:   out,
	}, true
}
