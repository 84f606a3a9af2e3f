// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/baro_altimeter/internal/env"
)

// Metrics are the producer's Prometheus metrics.
type Metrics struct {
	Altitude        prometheus.Gauge
	RawAltitude     prometheus.Gauge
	GroundAltitude  prometheus.Gauge
	Pressure        prometheus.Gauge
	Temperature     prometheus.Gauge
	Ticks           prometheus.Counter
	TickErrors      prometheus.Counter
	Publishes       prometheus.Counter
	PublishErrors   prometheus.Counter
	GroundAttempts  prometheus.Gauge
	GroundConverged prometheus.Gauge
}

// NewMetrics creates the metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_altitude_meters",
			Help: "Filtered altitude above the ground reference.",
		}),
		RawAltitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_raw_altitude_meters",
			Help: "Unfiltered altitude above sea level.",
		}),
		GroundAltitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_ground_altitude_meters",
			Help: "Ground reference altitude above sea level.",
		}),
		Pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_pressure_pascals",
			Help: "Compensated pressure.",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_temperature_celsius",
			Help: "Compensated temperature.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baro_ticks_total",
			Help: "Measurement ticks run.",
		}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baro_tick_errors_total",
			Help: "Measurement ticks aborted by a bus error.",
		}),
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baro_publishes_total",
			Help: "Samples published to MQTT.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baro_publish_errors_total",
			Help: "Samples that failed to publish.",
		}),
		GroundAttempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_ground_calibration_attempts",
			Help: "Attempts used by the last ground calibration.",
		}),
		GroundConverged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baro_ground_calibration_converged",
			Help: "1 once the ground reference is set.",
		}),
	}
	reg.MustRegister(
		m.Altitude, m.RawAltitude, m.GroundAltitude, m.Pressure, m.Temperature,
		m.Ticks, m.TickErrors, m.Publishes, m.PublishErrors,
		m.GroundAttempts, m.GroundConverged,
	)
	return m
}

// Observe updates the gauges from s.
func (m *Metrics) Observe(s env.Sample) {
	m.Temperature.Set(s.Temperature)
	if !s.HasPressure {
		return
	}
	m.Pressure.Set(s.Pressure)
	m.RawAltitude.Set(s.RawAltitude)
	m.Altitude.Set(s.Altitude)
	if s.GroundSet {
		m.GroundAltitude.Set(s.GroundAltitude)
		m.GroundConverged.Set(1)
	}
}

// ServeMetrics exposes reg on /metrics. Port 0 disables it.
func ServeMetrics(port int, reg *prometheus.Registry) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	go func() {
		log.Printf("metrics: listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics: server error: %v", err)
		}
	}()
}
