// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/baro_altimeter/internal/althold"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
)

// newAltHoldController builds the controller from cfg.
func newAltHoldController(cfg *config.Config) *althold.Controller {
	return althold.New(althold.Gains{
		Kp:  cfg.AltHoldKp,
		Ki:  cfg.AltHoldKi,
		Kd:  cfg.AltHoldKd,
		Min: cfg.AltHoldOutputMin,
		Max: cfg.AltHoldOutputMax,
	}, cfg.AltHoldTarget, config.Millis(cfg.AltHoldInterval))
}

// RunAltHold subscribes to altitude samples and publishes a climb command
// for each usable one until ctx is done.
func RunAltHold(ctx context.Context) error {
	cfg := config.Get()
	ctrl := newAltHoldController(cfg)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDAltHold)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	cmds := make(chan althold.Command, 16)

	// Paho delivers messages in order on a single goroutine, so Step is
	// never called concurrently.
	err = subscribe(client, cfg.TopicAltitude, func(_ mqtt.Client, msg mqtt.Message) {
		var s env.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("althold: altitude unmarshal error: %v", err)
			return
		}
		cmd, ok := ctrl.Step(s)
		if !ok {
			return
		}
		select {
		case cmds <- cmd:
		default:
			log.Printf("althold: publisher busy, dropping command")
		}
	})
	if err != nil {
		return err
	}

	log.Printf("althold: holding %.2f m above ground", ctrl.Target())

	for {
		select {
		case <-ctx.Done():
			log.Println("althold: shutting down")
			return nil
		case cmd := <-cmds:
			if err := publishJSON(client, cfg.TopicAltHold, cmd); err != nil {
				log.Printf("althold: %v", err)
			}
		}
	}
}
