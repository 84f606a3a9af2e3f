// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/baro_altimeter/internal/bus"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

// errLogEvery limits logging of consecutive tick errors.
const errLogEvery = 100

// altimeterSource is what the producer loop needs from the sensor.
type altimeterSource interface {
	Tick() error
	Sample(t time.Time) env.Sample
}

// altimeterLoop runs one scheduler tick per control cycle and publishes at a
// lower rate.
type altimeterLoop struct {
	src          altimeterSource
	metrics      *Metrics
	publish      func(env.Sample) error
	publishEvery time.Duration

	lastPublish time.Time
	errRun      int
}

func (l *altimeterLoop) step(t time.Time) {
	l.metrics.Ticks.Inc()
	if err := l.src.Tick(); err != nil {
		l.metrics.TickErrors.Inc()
		if l.errRun%errLogEvery == 0 {
			if errors.Is(err, bus.ErrTransport) {
				log.Printf("baro: bus error, keeping last altitude (%d in a row): %v", l.errRun+1, err)
			} else {
				log.Printf("baro: tick error (%d in a row): %v", l.errRun+1, err)
			}
		}
		l.errRun++
		return
	}
	if l.errRun > 0 {
		log.Printf("baro: recovered after %d failed ticks", l.errRun)
		l.errRun = 0
	}

	s := l.src.Sample(t)
	l.metrics.Observe(s)

	if !l.lastPublish.IsZero() && t.Sub(l.lastPublish) < l.publishEvery {
		return
	}
	l.lastPublish = t
	if err := l.publish(s); err != nil {
		l.metrics.PublishErrors.Inc()
		log.Printf("baro: %v", err)
		return
	}
	l.metrics.Publishes.Inc()
}

// RunAltimeterProducer brings up the barometer, calibrates the ground
// reference and publishes altitude samples until ctx is done.
func RunAltimeterProducer(ctx context.Context, mock bool) error {
	log.Println("starting barometric altimeter producer")

	cfg := config.Get()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ServeMetrics(cfg.MetricsPort, reg)

	baro, err := sensors.OpenBaro(cfg, mock)
	if err != nil {
		return err
	}
	defer baro.Close()

	g := sensors.GroundCalibrator(cfg)
	g.Progress = func(attempt int, candidate, last float64) {
		metrics.GroundAttempts.Set(float64(attempt + 1))
		log.Printf("baro: ground attempt %d: average %.2f m, last sample %.2f m", attempt, candidate, last)
	}
	if _, err := baro.CalibrateGround(ctx, g); err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := publishJSON(client, cfg.TopicAltitude+"/info", baro.Describe()); err != nil {
		log.Printf("baro: %v", err)
	}

	loop := &altimeterLoop{
		src:          baro,
		metrics:      metrics,
		publishEvery: config.Millis(cfg.PublishInterval),
		publish: func(s env.Sample) error {
			return publishJSON(client, cfg.TopicAltitude, s)
		},
	}

	log.Println("baro: connected to MQTT, starting tick loop")

	ticker := time.NewTicker(config.Millis(cfg.BaroTickInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("baro: shutting down")
			return nil
		case t := <-ticker.C:
			loop.step(t)
		}
	}
}
