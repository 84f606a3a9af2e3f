// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sort"
	"strconv"
)

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

var calibrationWords = []string{"AC1", "AC2", "AC3", "AC4", "AC5", "AC6", "B1", "B2", "MB", "MC", "MD"}

// BMP085RegisterMap returns metadata for all BMP085/BMP180 registers.
func BMP085RegisterMap() []RegisterInfo {
	regs := make([]RegisterInfo, 0, 28)

	// Factory calibration EEPROM, big-endian words.
	for i, w := range calibrationWords {
		signed := "signed"
		if w == "AC4" || w == "AC5" || w == "AC6" {
			signed = "unsigned"
		}
		regs = append(regs,
			RegisterInfo{Address: fmt.Sprintf("0x%02X", 0xAA+2*i), Name: w + "_MSB",
				Description: fmt.Sprintf("Calibration %s high byte (%s 16-bit)", w, signed), Access: "R"},
			RegisterInfo{Address: fmt.Sprintf("0x%02X", 0xAB+2*i), Name: w + "_LSB",
				Description: fmt.Sprintf("Calibration %s low byte", w), Access: "R"},
		)
	}

	regs = append(regs,
		RegisterInfo{Address: "0xD0", Name: "CHIP_ID", Description: "Chip ID (should be 0x55)", Access: "R", Default: "0x55"},
		RegisterInfo{Address: "0xE0", Name: "SOFT_RESET", Description: "Write 0xB6 for a power-on reset", Access: "W", Default: "0x00"},
		RegisterInfo{Address: "0xF4", Name: "CTRL_MEAS", Description: "Measurement control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "OSS", Description: "Pressure oversampling", Values: "0=x1 (4.5ms), 1=x2 (7.5ms), 2=x4 (13.5ms), 3=x8 (25.5ms)"},
				{Bits: "5", Name: "SCO", Description: "Start of conversion", Values: "1=Running, 0=Done"},
				{Bits: "4:0", Name: "MEAS_CTRL", Description: "Measurement select", Values: "0x0E=Temperature, 0x14=Pressure"},
			}},
		RegisterInfo{Address: "0xF6", Name: "OUT_MSB", Description: "ADC output bits 23:16 (pressure) / 15:8 (temperature)", Access: "R", Default: "0x80"},
		RegisterInfo{Address: "0xF7", Name: "OUT_LSB", Description: "ADC output bits 15:8 (pressure) / 7:0 (temperature)", Access: "R", Default: "0x00"},
		RegisterInfo{Address: "0xF8", Name: "OUT_XLSB", Description: "ADC output bits 7:0 (pressure, upper 8-oss bits valid)", Access: "R", Default: "0x00"},
	)
	return regs
}

// writableRegisters are the only registers the debug tool may write.
var writableRegisters = map[byte]bool{0xE0: true, 0xF4: true}

// IsRegisterWritable reports whether addr may be written from the debug tool.
func IsRegisterWritable(addr byte) bool {
	return writableRegisters[addr]
}

// registerAddresses returns every mapped register address in ascending order.
func registerAddresses() []byte {
	var addrs []byte
	for _, r := range BMP085RegisterMap() {
		if r.Access == "W" {
			continue
		}
		v, err := strconv.ParseUint(r.Address, 0, 8)
		if err != nil {
			continue
		}
		addrs = append(addrs, byte(v))
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// ReadRegister reads a single register.
func (b *Baro) ReadRegister(addr byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readRegister(addr)
}

func (b *Baro) readRegister(addr byte) (byte, error) {
	var v [1]byte
	if err := b.reg.ReadReg(addr, v[:]); err != nil {
		return 0, fmt.Errorf("baro: read register 0x%02X: %w", addr, err)
	}
	return v[0], nil
}

// WriteRegister writes a single register, limited to the writable set. A
// write to the control register starts a conversion the scheduler did not
// ask for; call Resync before the next Tick.
func (b *Baro) WriteRegister(addr, value byte) error {
	if !IsRegisterWritable(addr) {
		return fmt.Errorf("baro: register 0x%02X is not writable", addr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reg.WriteReg(addr, value); err != nil {
		return fmt.Errorf("baro: write register 0x%02X: %w", addr, err)
	}
	return nil
}

// Resync re-issues the conversion the scheduler is waiting on.
func (b *Baro) Resync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Restart(); err != nil {
		return fmt.Errorf("baro: resync: %w", err)
	}
	return nil
}

// ReadAllRegisters reads every readable register in the map.
func (b *Baro) ReadAllRegisters() (map[byte]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[byte]byte)
	for _, addr := range registerAddresses() {
		v, err := b.readRegister(addr)
		if err != nil {
			return nil, err
		}
		out[addr] = v
	}
	return out, nil
}
