// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmp085

import "fmt"

// Phase is the conversion the scheduler is waiting on.
type Phase uint8

const (
	AwaitingTemperature Phase = iota
	AwaitingPressure
)

func (p Phase) String() string {
	switch p {
	case AwaitingTemperature:
		return "awaiting-temperature"
	case AwaitingPressure:
		return "awaiting-pressure"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Request is the conversion to start once the current result has been read.
type Request uint8

const (
	RequestTemperature Request = iota
	RequestPressure
)

func (r Request) String() string {
	if r == RequestTemperature {
		return "temperature"
	}
	return "pressure"
}

// pressureBurst is the number of pressure samples taken per temperature
// sample. Burst counts 0..pressureBurst-1.
const pressureBurst = 5

// State is the scheduler state. The zero value waits for a temperature
// conversion, which is what New starts.
type State struct {
	Phase Phase
	Burst uint8
}

// Step returns the state after the pending conversion has been read, and the
// conversion to request next.
func (s State) Step() (State, Request) {
	switch s.Phase {
	case AwaitingTemperature:
		return State{Phase: AwaitingPressure, Burst: 0}, RequestPressure
	default:
		if s.Burst >= pressureBurst-1 {
			return State{Phase: AwaitingTemperature, Burst: 0}, RequestTemperature
		}
		return State{Phase: AwaitingPressure, Burst: s.Burst + 1}, RequestPressure
	}
}

// AfterPressure reports whether s is reached by reading a pressure result.
func (s State) AfterPressure() bool {
	return s.Phase == AwaitingTemperature || s.Burst > 0
}

func (s State) String() string {
	if s.Phase == AwaitingPressure {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Burst)
	}
	return s.Phase.String()
}
