// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

// I²C clock limits accepted by set_i2c_speed.
const (
	minI2CSpeed = 10 * physic.KiloHertz
	maxI2CSpeed = 400 * physic.KiloHertz
)

// RegisterDebugSession holds WebSocket connection state for register debugging
type RegisterDebugSession struct {
	Conn jsonWriter
	baro *sensors.Baro
	addr uint16
}

// RegisterResponse is a server message.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "status", "reference", "error"
	Device      string                 `json:"device,omitempty"`
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"` // for bulk read
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Status      string                 `json:"status,omitempty"`
	SpeedHz     int64                  `json:"speed_hz,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Driver      *env.Sample            `json:"driver,omitempty"`
	Reference   *env.Sample            `json:"reference,omitempty"`
}

// RegisterConfigFile represents the JSON structure for exported register configuration
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// NewRegisterDebugHandler serves register reads and writes for baro over a
// websocket. addr is the sensor address, used for the reference cross-check.
func NewRegisterDebugHandler(baro *sensors.Baro, addr uint16) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("register_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &RegisterDebugSession{Conn: conn, baro: baro, addr: addr}

		// Send register map on connection
		if err := session.sendRegisterMap(); err != nil {
			log.Printf("register_debug: error sending register map: %v", err)
			return
		}

		for {
			var rawMsg map[string]interface{}
			if err := conn.ReadJSON(&rawMsg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("register_debug: websocket error: %v", err)
				}
				return
			}
			session.handle(rawMsg)
		}
	}
}

func (s *RegisterDebugSession) handle(rawMsg map[string]interface{}) {
	action, ok := rawMsg["action"].(string)
	if !ok {
		s.sendError("missing or invalid action field")
		return
	}

	switch action {
	case "get_map":
		s.sendRegisterMap()
	case "read":
		s.handleRead(rawMsg)
	case "read_all":
		s.handleReadAll()
	case "write":
		s.handleWrite(rawMsg)
	case "resync":
		s.handleResync()
	case "set_i2c_speed":
		s.handleSetI2CSpeed(rawMsg)
	case "export_config":
		s.handleExportConfig()
	case "reference":
		s.handleReference()
	default:
		s.sendError(fmt.Sprintf("unknown action: %s", action))
	}
}

// parseHexByte parses "0xNN".
func parseHexByte(v string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(v, "0x%X", &b); err != nil {
		return 0, fmt.Errorf("invalid hex byte: %s", v)
	}
	return b, nil
}

func hexRegisters(registers map[byte]byte) map[string]string {
	regMap := make(map[string]string, len(registers))
	for addr, value := range registers {
		regMap[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", value)
	}
	return regMap
}

func (s *RegisterDebugSession) handleRead(rawMsg map[string]interface{}) {
	addr, _ := rawMsg["addr"].(string)
	if addr == "" {
		s.sendError("missing addr field")
		return
	}
	addrByte, err := parseHexByte(addr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid address format: %s", addr))
		return
	}

	value, err := s.baro.ReadRegister(addrByte)
	if err != nil {
		s.sendError(fmt.Sprintf("read error: %v", err))
		return
	}

	s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Device:    "bmp085",
		Address:   addr,
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleReadAll() {
	registers, err := s.baro.ReadAllRegisters()
	if err != nil {
		s.sendError(fmt.Sprintf("read all error: %v", err))
		return
	}

	s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Device:    "bmp085",
		Registers: hexRegisters(registers),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleWrite(rawMsg map[string]interface{}) {
	addr, _ := rawMsg["addr"].(string)
	valueStr, _ := rawMsg["value"].(string)
	if addr == "" || valueStr == "" {
		s.sendError("missing addr or value field")
		return
	}

	addrByte, err := parseHexByte(addr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid address format: %s", addr))
		return
	}
	valueByte, err := parseHexByte(valueStr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid value format: %s", valueStr))
		return
	}

	if err := s.baro.WriteRegister(addrByte, valueByte); err != nil {
		s.sendError(fmt.Sprintf("write error: %v", err))
		return
	}

	s.Conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Device:    "bmp085",
		Address:   addr,
		Value:     valueStr,
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	})
}

func (s *RegisterDebugSession) handleResync() {
	if err := s.baro.Resync(); err != nil {
		s.sendError(err.Error())
		return
	}
	s.Conn.WriteJSON(RegisterResponse{
		Type:    "status",
		Device:  "bmp085",
		Status:  "resynced",
		Message: "pending conversion re-issued",
	})
}

func (s *RegisterDebugSession) handleSetI2CSpeed(rawMsg map[string]interface{}) {
	hz, _ := rawMsg["speed_hz"].(float64)

	// Validate and clamp speed
	speed := physic.Frequency(hz) * physic.Hertz
	if speed < minI2CSpeed {
		speed = minI2CSpeed
	}
	if speed > maxI2CSpeed {
		speed = maxI2CSpeed
	}

	if err := s.baro.Bus().SetSpeed(speed); err != nil {
		s.sendError(fmt.Sprintf("set i2c speed error: %v", err))
		return
	}

	s.Conn.WriteJSON(RegisterResponse{
		Type:    "status",
		Device:  "bmp085",
		SpeedHz: int64(speed / physic.Hertz),
		Message: fmt.Sprintf("I2C speed set to %s", speed),
	})
}

func (s *RegisterDebugSession) handleExportConfig() {
	registers, err := s.baro.ReadAllRegisters()
	if err != nil {
		s.sendError(fmt.Sprintf("export error: %v", err))
		return
	}

	configFile := RegisterConfigFile{
		Version:   1,
		Device:    "bmp085",
		Timestamp: time.Now().Format(time.RFC3339),
		Registers: hexRegisters(registers),
	}

	// Send as download
	configJSON, _ := json.Marshal(configFile)
	s.Conn.WriteJSON(map[string]interface{}{
		"type":     "export_config",
		"device":   "bmp085",
		"message":  "config exported",
		"config":   string(configJSON),
		"filename": fmt.Sprintf("bmp085_%s_registers.json", time.Now().Format("20060102_150405")),
	})
}

func (s *RegisterDebugSession) handleReference() {
	got, ref, err := s.baro.CrossCheck(s.addr)
	if err != nil {
		s.sendError(fmt.Sprintf("reference error: %v", err))
		return
	}
	dT, dP, dAlt := sensors.Compare(got, ref)
	s.Conn.WriteJSON(RegisterResponse{
		Type:      "reference",
		Device:    "bmp085",
		Driver:    &got,
		Reference: &ref,
		Message:   fmt.Sprintf("dT=%.2f°C dP=%.0fPa dAlt=%.2fm", dT, dP, dAlt),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) sendRegisterMap() error {
	return s.Conn.WriteJSON(RegisterResponse{
		Type:        "register_map",
		Device:      "bmp085",
		RegisterMap: sensors.BMP085RegisterMap(),
	})
}

func (s *RegisterDebugSession) sendError(message string) {
	s.Conn.WriteJSON(RegisterResponse{
		Type:    "error",
		Message: message,
	})
}

// NewBaroDataHandler serves a fresh reading as JSON.
func NewBaroDataHandler(baro *sensors.Baro) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		sample, err := baro.Reading()
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error": %q}`, err.Error()), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(sample)
	}
}
