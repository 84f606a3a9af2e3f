// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided ground survey for the BMP085/BMP180 altimeter.
// Runs:
//  1. Noise: stationary pressure samples to estimate sensor noise at the configured oversampling
//  2. Ground: the same converging ground calibration the producer runs at startup
//
// Output:
//
//	Writes a JSON report to the current directory (or -out) with the statistics and a confidence.
//
// Run:
//
//	go run ./cmd/calibration [-mock] [-samples 200]
//
// Notes / assumptions:
//   - Owns the sensor; do not run it next to the producer.
//   - The ground reference found here is not stored; the producer always calibrates on startup.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/relabs-tech/baro_altimeter/internal/app"
	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := flag.String("config", "altimeter_config.txt", "Path to configuration file")
	mock := flag.Bool("mock", false, "Use a simulated BMP085 instead of the I2C bus")
	samples := flag.Int("samples", 200, "Pressure samples in the noise phase")
	out := flag.String("out", "", "Report path (default: <source>_<unix>_ground_survey.json)")
	flag.Parse()

	fmt.Println("=== Guided Ground Survey (BMP085) ===")
	fmt.Println("This workflow measures sensor noise and runs a ground calibration.")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	baro, err := sensors.OpenBaro(cfg, *mock)
	if err != nil {
		fatal(err)
	}
	defer baro.Close()

	info := baro.Describe()
	fmt.Printf("Sensor: %s\n\n", info)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Place the device on a stable surface, away from drafts, and do not touch it.")
	waitEnter(in, fmt.Sprintf("Press ENTER to start the survey (%d noise samples)...", *samples))

	g := sensors.GroundCalibrator(cfg)
	start := time.Now()
	var res *app.GroundSurvey
	err = baro.Do(func(d *bmp085.Dev) error {
		var err error
		res, err = app.RunGroundSurvey(ctx, d, info.Name, *samples, g, app.SurveyProgress{
			Noise: func(frac float64) {
				fmt.Printf("\rStep 1/2, noise: %3.0f%%", frac*100)
			},
			Ground: func(attempt int, candidate, last float64) {
				fmt.Printf("\nStep 2/2, ground attempt %d: average %.2f m, last sample %.2f m",
					attempt+1, candidate, last)
			},
		})
		return err
	})
	fmt.Println()
	if err != nil {
		fatal(err)
	}

	fmt.Printf("\nSurvey took %s.\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Pressure: mean %s Pa, stddev %.1f Pa\n", humanize.Comma(int64(res.MeanPressure)), res.PressureStdDev)
	fmt.Printf("Altitude: mean %.2f m, stddev %.2f m\n", res.MeanAltitude, res.AltitudeStdDev)
	fmt.Printf("Temperature: %.1f °C\n", res.Temperature)
	if res.Converged {
		fmt.Printf("Ground: %.2f m after %d attempt(s)\n", res.GroundAltitude, res.Attempts)
	} else {
		fmt.Printf("Ground: did not converge in %d attempts (last average %.2f m, last sample %.2f m)\n",
			res.Attempts, res.LastCandidate, res.LastSample)
	}
	fmt.Printf("Confidence: %.2f\n", res.Confidence)

	path := *out
	if path == "" {
		path = app.SurveyFileName(info.Name, res.Timestamp)
	}
	if err := app.WriteGroundSurvey(path, res); err != nil {
		fatal(err)
	}
	fmt.Printf("\nWrote: %s\n", path)
}

// ---------- Console helpers ----------

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
	fmt.Println()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
