package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

// altitudeHub keeps the latest altitude sample and GPS fix and fans samples
// out to websocket clients.
type altitudeHub struct {
	mu         sync.RWMutex
	sample     env.Sample
	haveSample bool
	fix        gps.Fix
	haveFix    bool
	subs       map[chan env.Sample]struct{}
}

func newAltitudeHub() *altitudeHub {
	return &altitudeHub{subs: make(map[chan env.Sample]struct{})}
}

// setSample stores s and offers it to every subscriber. Slow subscribers
// miss samples rather than block the MQTT handler.
func (h *altitudeHub) setSample(s env.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sample = s
	h.haveSample = true
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (h *altitudeHub) setFix(f gps.Fix) {
	h.mu.Lock()
	h.fix = f
	h.haveFix = true
	h.mu.Unlock()
}

func (h *altitudeHub) subscribe() chan env.Sample {
	ch := make(chan env.Sample, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *altitudeHub) unsubscribe(ch chan env.Sample) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func (h *altitudeHub) handleAltitude(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.haveSample {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.sample)
}

func (h *altitudeHub) handleGPS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.haveFix {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.fix)
}

// handleWS streams every new sample to the client until it disconnects.
func (h *altitudeHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	h.mu.RLock()
	last, have := h.sample, h.haveSample
	h.mu.RUnlock()
	if have {
		if err := conn.WriteJSON(last); err != nil {
			return
		}
	}

	// The reader only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case s := <-ch:
			if err := conn.WriteJSON(s); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

func (h *altitudeHub) routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/altitude", h.handleAltitude)
	mux.HandleFunc("/api/gps", h.handleGPS)
	mux.HandleFunc("/ws/altitude", h.handleWS)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

// RunWeb serves the latest altitude and GPS fix over HTTP and streams
// altitude over a websocket until ctx is done.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	hub := newAltitudeHub()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, cfg.TopicAltitude, func(_ mqtt.Client, msg mqtt.Message) {
		var s env.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		hub.setSample(s)
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicGPS, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		hub.setFix(f)
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: hub.routes("web"),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
