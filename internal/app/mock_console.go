// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

// RunMockConsole drives a simulated barometer locally and prints altitude
// lines, without MQTT.
func RunMockConsole(ctx context.Context) error {
	cfg := config.Get()

	baro, err := sensors.OpenBaro(cfg, true)
	if err != nil {
		return err
	}
	defer baro.Close()

	if _, err := baro.CalibrateGround(ctx, sensors.GroundCalibrator(cfg)); err != nil {
		return err
	}

	tick := time.NewTicker(config.Millis(cfg.BaroTickInterval))
	defer tick.Stop()
	out := time.NewTicker(config.Millis(cfg.ConsoleLogInterval))
	defer out.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := baro.Tick(); err != nil {
				log.Printf("mock console: %v", err)
			}
		case t := <-out.C:
			fmt.Printf("%s  sim=%7.2fm\n", formatAltitudeLine(baro.Sample(t), t), baro.Sim().Altitude())
		}
	}
}
