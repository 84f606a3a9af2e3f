// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

// RunRegisterDebug owns the barometer and serves the register debug and
// ground survey tools until ctx is done. It must not run next to the
// producer, which drives the same sensor.
func RunRegisterDebug(ctx context.Context, mock bool) error {
	cfg := config.Get()

	baro, err := sensors.OpenBaro(cfg, mock)
	if err != nil {
		return err
	}
	defer baro.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewRegisterDebugHandler(baro, cfg.BaroI2CAddr))
	mux.HandleFunc("/ws/calibration", NewCalibrationHandler(baro, sensors.GroundCalibrator(cfg)))
	mux.HandleFunc("/api/baro", NewBaroDataHandler(baro))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RegisterDebugPort),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("register debug tool listening on %s", srv.Addr)
	log.Printf("open http://localhost:%d in your browser", cfg.RegisterDebugPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
