// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// defaultNoiseSamples is the size of the stationary noise phase.
const defaultNoiseSamples = 100

// jsonWriter is the part of *websocket.Conn a session writes to.
type jsonWriter interface {
	WriteJSON(v interface{}) error
}

// CalibrationSession walks a client through a ground survey: a stationary
// noise phase, then a ground calibration run.
type CalibrationSession struct {
	Conn jsonWriter

	mu           sync.Mutex
	source       string
	noiseSamples int
	calibrator   bmp085.GroundCalibrator
	currentPhase string
	results      GroundSurvey
	outDir       string
}

// WSMessage is a client request.
type WSMessage struct {
	Action    string  `json:"action"` // init, next, cancel
	Samples   int     `json:"samples,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// WSResponse is a server message.
type WSResponse struct {
	Type     string                 `json:"type"` // phase, progress, stats, complete, error
	Phase    string                 `json:"phase,omitempty"`
	Progress float64                `json:"progress,omitempty"`
	Stats    map[string]interface{} `json:"stats,omitempty"`
	Results  interface{}            `json:"results,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

func newCalibrationSession(conn jsonWriter, source string, g bmp085.GroundCalibrator, outDir string) *CalibrationSession {
	return &CalibrationSession{
		Conn:         conn,
		source:       source,
		noiseSamples: defaultNoiseSamples,
		calibrator:   g,
		outDir:       outDir,
		results: GroundSurvey{
			Version:   1,
			Source:    source,
			Timestamp: time.Now(),
		},
	}
}

// NewCalibrationHandler serves ground surveys over a websocket. Reports are
// written to the current directory.
func NewCalibrationHandler(baro *sensors.Baro, g bmp085.GroundCalibrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("calibration: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		cwd, err := os.Getwd()
		if err != nil {
			log.Printf("calibration: failed to get current directory: %v", err)
			return
		}
		session := newCalibrationSession(conn, baro.Describe().Name, g, cwd)

		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("calibration: websocket read error: %v", err)
				return
			}

			switch msg.Action {
			case "init":
				session.init(msg)
			case "next":
				err := baro.Do(func(d *bmp085.Dev) error {
					return session.runNextStep(r.Context(), d)
				})
				if err != nil {
					session.sendError(err.Error())
				}
			case "cancel":
				log.Printf("calibration: cancelled by user")
				return
			default:
				session.sendError(fmt.Sprintf("unknown action: %s", msg.Action))
			}
		}
	}
}

func (s *CalibrationSession) init(msg WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Samples > 0 {
		s.noiseSamples = msg.Samples
	}
	if msg.Threshold > 0 {
		s.calibrator.Threshold = msg.Threshold
	}
	s.currentPhase = ""
	s.results = GroundSurvey{Version: 1, Source: s.source, Timestamp: time.Now()}
	log.Printf("calibration: initialized (%d noise samples, threshold %.2f m)", s.noiseSamples, s.calibrator.Threshold)
}

func (s *CalibrationSession) runNextStep(ctx context.Context, src surveySource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.currentPhase {
	case "":
		s.currentPhase = "noise"
		return s.runNoise(ctx, src)
	case "noise":
		s.currentPhase = "ground"
		return s.runGround(ctx, src)
	case "ground":
		s.currentPhase = "done"
		return s.complete()
	}
	return fmt.Errorf("survey already complete, send init to start over")
}

func (s *CalibrationSession) runNoise(ctx context.Context, src surveySource) error {
	s.sendPhase("noise")
	s.sendProgress(0)
	err := surveyNoise(ctx, src, s.noiseSamples, 0, &s.results, func(frac float64) {
		s.sendProgress(frac * 100)
	})
	if err != nil {
		return err
	}
	s.sendStats()
	s.sendActionReady()
	return nil
}

func (s *CalibrationSession) runGround(ctx context.Context, src surveySource) error {
	s.sendPhase("ground")
	s.sendProgress(0)
	attempts := s.calibrator.MaxRetries + 1
	err := surveyGround(ctx, src, s.calibrator, &s.results, func(attempt int, candidate, last float64) {
		s.sendProgress(float64(attempt+1) / float64(attempts) * 100)
	})
	if err != nil {
		return err
	}
	s.results.Confidence = surveyConfidence(&s.results, attempts)
	s.sendProgress(100)
	s.sendStats()
	s.sendActionReady()
	return nil
}

func (s *CalibrationSession) complete() error {
	filename := SurveyFileName(s.source, time.Now())
	path := filepath.Join(s.outDir, filename)
	if err := WriteGroundSurvey(path, &s.results); err != nil {
		return err
	}
	log.Printf("calibration: saved results to %s", path)

	err := s.Conn.WriteJSON(WSResponse{
		Type:    "complete",
		Results: map[string]interface{}{"filename": filename, "survey": s.results},
	})
	if err != nil {
		log.Printf("calibration: websocket write error: %v", err)
	}
	return nil
}

func (s *CalibrationSession) sendPhase(phase string) {
	s.Conn.WriteJSON(WSResponse{
		Type:  "phase",
		Phase: phase,
	})
}

func (s *CalibrationSession) sendProgress(progress float64) {
	s.Conn.WriteJSON(WSResponse{
		Type:     "progress",
		Progress: progress,
	})
}

func (s *CalibrationSession) sendStats() {
	stats := map[string]interface{}{
		"pressure_stddev_pa": s.results.PressureStdDev,
		"alt_stddev_m":       s.results.AltitudeStdDev,
		"attempts":           s.results.Attempts,
		"converged":          s.results.Converged,
		"ground_alt_m":       s.results.GroundAltitude,
		"confidence":         s.results.Confidence,
	}
	s.Conn.WriteJSON(WSResponse{
		Type:  "stats",
		Stats: stats,
	})
}

func (s *CalibrationSession) sendActionReady() {
	s.Conn.WriteJSON(WSResponse{
		Type:    "action",
		Message: "ready",
	})
}

func (s *CalibrationSession) sendError(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}
