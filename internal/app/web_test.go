package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

func TestAltitudeHub_API(t *testing.T) {
	hub := newAltitudeHub()
	srv := httptest.NewServer(hub.routes(t.TempDir()))
	defer srv.Close()

	for _, path := range []string{"/api/altitude", "/api/gps"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("GET %s status=%d want 503 before data", path, resp.StatusCode)
		}
	}

	hub.setSample(env.Sample{Altitude: 42.5, HasPressure: true})
	hub.setFix(gps.Fix{Satellites: 7})

	resp, err := http.Get(srv.URL + "/api/altitude")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var s env.Sample
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Altitude != 42.5 || !s.HasPressure {
		t.Fatalf("sample=%+v", s)
	}

	resp2, err := http.Get(srv.URL + "/api/gps")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	var f gps.Fix
	if err := json.NewDecoder(resp2.Body).Decode(&f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Satellites != 7 {
		t.Fatalf("fix=%+v", f)
	}
}

func TestAltitudeHub_StreamsSamples(t *testing.T) {
	hub := newAltitudeHub()
	hub.setSample(env.Sample{Altitude: 1})
	srv := httptest.NewServer(hub.routes(t.TempDir()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/altitude"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var s env.Sample
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("read: %v", err)
	}
	if s.Altitude != 1 {
		t.Fatalf("first message altitude=%v want the latest sample 1", s.Altitude)
	}

	// The handler subscribes before sending the latest sample, so this one
	// is delivered.
	hub.setSample(env.Sample{Altitude: 2})
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("read: %v", err)
	}
	if s.Altitude != 2 {
		t.Fatalf("streamed altitude=%v want 2", s.Altitude)
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.subs)
		hub.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
