// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus serializes register transactions on a shared I²C bus.
//
// Several devices may hang off the same two-wire bus. A transaction that is
// interleaved with another device's transaction corrupts addressing, so every
// register access holds the bus lock from the address phase to the stop
// condition.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// ErrTransport is matched (errors.Is) by every failure reported by a Dev.
var ErrTransport = errors.New("bus: transport failure")

// Error describes a failed transaction.
type Error struct {
	Op   string // "read", "write", "command"
	Addr uint16
	Reg  byte
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bus: %s reg 0x%02X at 0x%02X: %v", e.Op, e.Reg, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrTransport }

// Bus wraps an i2c.Bus with a transaction lock.
type Bus struct {
	mu     sync.Mutex
	b      i2c.Bus
	closer func() error
}

var _ i2c.Bus = (*Bus)(nil)

// New wraps b. The caller keeps ownership of b.
func New(b i2c.Bus) *Bus {
	return &Bus{b: b}
}

// Open initializes the periph host drivers and opens the named bus ("" for
// the first available one).
func Open(name string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bus: periph host init: %w", err)
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("bus: i2c open %q: %w", name, err)
	}
	return &Bus{b: bc, closer: bc.Close}, nil
}

// Close releases the bus if it was opened by Open.
func (b *Bus) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	err := b.closer()
	b.closer = nil
	return err
}

// I2C returns the underlying bus. Callers that use it directly bypass the
// transaction lock and must not run concurrently with Dev transactions.
func (b *Bus) I2C() i2c.Bus {
	return b.b
}

func (b *Bus) String() string {
	return b.b.String()
}

// Tx implements i2c.Bus under the transaction lock, so periph drivers can
// share the bus with Dev handles.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.tx(addr, w, r)
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.SetSpeed(f)
}

// Dev returns a handle for the device at the 7-bit address addr.
func (b *Bus) Dev(addr uint16) *Dev {
	return &Dev{bus: b, addr: addr}
}

// tx runs one transaction under the bus lock.
func (b *Bus) tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Tx(addr, w, r)
}

// Dev is a device on a shared Bus.
type Dev struct {
	bus  *Bus
	addr uint16
}

// Addr returns the device address.
func (d *Dev) Addr() uint16 { return d.addr }

func (d *Dev) String() string {
	return fmt.Sprintf("%s@0x%02X", d.bus, d.addr)
}

// WriteReg writes value to register reg.
func (d *Dev) WriteReg(reg, value byte) error {
	if err := d.check(); err != nil {
		return &Error{Op: "write", Addr: d.addr, Reg: reg, Err: err}
	}
	if err := d.bus.tx(d.addr, []byte{reg, value}, nil); err != nil {
		return &Error{Op: "write", Addr: d.addr, Reg: reg, Err: err}
	}
	return nil
}

// ReadReg reads len(dst) bytes starting at reg with a repeated start.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	if err := d.check(); err != nil {
		return &Error{Op: "read", Addr: d.addr, Reg: reg, Err: err}
	}
	if len(dst) == 0 {
		return nil
	}
	if err := d.bus.tx(d.addr, []byte{reg}, dst); err != nil {
		return &Error{Op: "read", Addr: d.addr, Reg: reg, Err: err}
	}
	return nil
}

// Command writes a single byte with no payload.
func (d *Dev) Command(cmd byte) error {
	if err := d.check(); err != nil {
		return &Error{Op: "command", Addr: d.addr, Reg: cmd, Err: err}
	}
	if err := d.bus.tx(d.addr, []byte{cmd}, nil); err != nil {
		return &Error{Op: "command", Addr: d.addr, Reg: cmd, Err: err}
	}
	return nil
}

// Read reads len(dst) bytes without addressing a register first.
func (d *Dev) Read(dst []byte) error {
	if err := d.check(); err != nil {
		return &Error{Op: "read", Addr: d.addr, Err: err}
	}
	if len(dst) == 0 {
		return nil
	}
	if err := d.bus.tx(d.addr, nil, dst); err != nil {
		return &Error{Op: "read", Addr: d.addr, Err: err}
	}
	return nil
}

func (d *Dev) check() error {
	if d == nil || d.bus == nil || d.bus.b == nil {
		return errors.New("device is nil")
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("invalid i2c addr 0x%X", d.addr)
	}
	return nil
}
