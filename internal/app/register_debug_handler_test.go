package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

func newDebugSession(t *testing.T) (*RegisterDebugSession, *recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.SimAltitude = 80
	baro, err := sensors.OpenBaro(cfg, true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	t.Cleanup(func() { baro.Close() })
	rec := &recorder{}
	return &RegisterDebugSession{Conn: rec, baro: baro, addr: bmp085.DefaultAddress}, rec
}

func lastRegisterResponse(t *testing.T, rec *recorder) RegisterResponse {
	t.Helper()
	resp, ok := rec.last().(RegisterResponse)
	if !ok {
		t.Fatalf("last message %#v is not a RegisterResponse", rec.last())
	}
	return resp
}

func TestRegisterDebugSession_ReadAndWrite(t *testing.T) {
	s, rec := newDebugSession(t)

	s.handle(map[string]interface{}{"action": "read", "addr": "0xD0"})
	if resp := lastRegisterResponse(t, rec); resp.Type != "register_data" || resp.Value != "0x55" {
		t.Fatalf("read response=%+v", resp)
	}

	s.handle(map[string]interface{}{"action": "read_all"})
	resp := lastRegisterResponse(t, rec)
	if resp.Registers["0xD0"] != "0x55" || len(resp.Registers) != 27 {
		t.Fatalf("read_all: %d registers, chip id %q", len(resp.Registers), resp.Registers["0xD0"])
	}

	s.handle(map[string]interface{}{"action": "write", "addr": "0xAA", "value": "0x00"})
	if resp := lastRegisterResponse(t, rec); resp.Type != "error" {
		t.Fatalf("write to calibration: %+v want error", resp)
	}
	s.handle(map[string]interface{}{"action": "write", "addr": "0xF4", "value": "0x2E"})
	if resp := lastRegisterResponse(t, rec); resp.Message != "write successful" {
		t.Fatalf("write control: %+v", resp)
	}
	s.handle(map[string]interface{}{"action": "resync"})
	if resp := lastRegisterResponse(t, rec); resp.Status != "resynced" {
		t.Fatalf("resync: %+v", resp)
	}

	s.handle(map[string]interface{}{"action": "read", "addr": "D0"})
	if resp := lastRegisterResponse(t, rec); resp.Type != "error" {
		t.Fatalf("bad address: %+v want error", resp)
	}
	s.handle(map[string]interface{}{"action": "nope"})
	if resp := lastRegisterResponse(t, rec); resp.Type != "error" {
		t.Fatalf("unknown action: %+v want error", resp)
	}
}

func TestRegisterDebugSession_SpeedMapExportReference(t *testing.T) {
	s, rec := newDebugSession(t)

	s.handle(map[string]interface{}{"action": "set_i2c_speed", "speed_hz": float64(1e6)})
	if resp := lastRegisterResponse(t, rec); resp.SpeedHz != 400000 {
		t.Fatalf("speed=%d want clamped to 400000", resp.SpeedHz)
	}

	s.handle(map[string]interface{}{"action": "get_map"})
	if resp := lastRegisterResponse(t, rec); len(resp.RegisterMap) != 28 {
		t.Fatalf("register map=%d entries want 28", len(resp.RegisterMap))
	}

	s.handle(map[string]interface{}{"action": "export_config"})
	exp, ok := rec.last().(map[string]interface{})
	if !ok || exp["type"] != "export_config" {
		t.Fatalf("export=%#v", rec.last())
	}
	var file RegisterConfigFile
	if err := json.Unmarshal([]byte(exp["config"].(string)), &file); err != nil {
		t.Fatalf("export config: %v", err)
	}
	if file.Device != "bmp085" || file.Registers["0xD0"] != "0x55" {
		t.Fatalf("export file=%+v", file)
	}

	s.handle(map[string]interface{}{"action": "reference"})
	resp := lastRegisterResponse(t, rec)
	if resp.Type != "reference" || resp.Reference == nil || resp.Driver == nil {
		t.Fatalf("reference response=%+v", resp)
	}
	if resp.Reference.Source != "reference" {
		t.Fatalf("reference source=%q", resp.Reference.Source)
	}
}

func TestBaroDataHandler(t *testing.T) {
	s, _ := newDebugSession(t)
	h := NewBaroDataHandler(s.baro)

	var got env.Sample
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/api/baro", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	if got.Source != "sim" || !got.HasPressure {
		t.Fatalf("sample=%+v", got)
	}
}
