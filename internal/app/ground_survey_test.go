package app

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/bus"
	"github.com/relabs-tech/baro_altimeter/internal/sim"
)

func newSimDev(t *testing.T, alt, noise float64) *bmp085.Dev {
	t.Helper()
	o := sim.DefaultOpts
	o.Profile = sim.Constant(alt)
	o.Noise = noise
	o.Seed = 1
	d, err := bmp085.New(bus.New(sim.New(&o)).Dev(bmp085.DefaultAddress), &bmp085.Opts{
		Oversampling: bmp085.UltraLowPower,
		Smoothing:    0.5,
	})
	if err != nil {
		t.Fatalf("bmp085.New: %v", err)
	}
	return d
}

func TestRunGroundSurvey_Converges(t *testing.T) {
	d := newSimDev(t, 200, 0)
	g := bmp085.GroundCalibrator{Samples: 5, Threshold: 1, MaxRetries: 2}

	var noiseCalls, groundCalls int
	r, err := RunGroundSurvey(context.Background(), d, "sim", 12, g, SurveyProgress{
		Noise:  func(float64) { noiseCalls++ },
		Ground: func(int, float64, float64) { groundCalls++ },
	})
	if err != nil {
		t.Fatalf("RunGroundSurvey: %v", err)
	}
	if noiseCalls != 12 || groundCalls != 1 {
		t.Fatalf("progress calls noise=%d ground=%d want 12 1", noiseCalls, groundCalls)
	}
	if r.NoiseSamples != 12 || math.Abs(r.MeanAltitude-200) > 1 {
		t.Fatalf("noise phase=%+v", r)
	}
	if r.AltitudeStdDev > 0.5 {
		t.Fatalf("altitude stddev=%v want small for a noiseless profile", r.AltitudeStdDev)
	}
	if !r.Converged || r.Attempts != 1 || math.Abs(r.GroundAltitude-200) > 1 {
		t.Fatalf("ground phase=%+v", r)
	}
	if r.Confidence < 0.9 {
		t.Fatalf("confidence=%v want high for a still sensor", r.Confidence)
	}
	// A survey never fixes the device's ground reference.
	if d.Snapshot().GroundSet {
		t.Fatalf("survey set the ground reference")
	}
}

func TestSurveyGround_NotConverged(t *testing.T) {
	d := newSimDev(t, 200, 30)
	g := bmp085.GroundCalibrator{Samples: 3, Threshold: 0.001, MaxRetries: 1}
	var r GroundSurvey
	if err := surveyGround(context.Background(), d, g, &r, nil); err != nil {
		t.Fatalf("surveyGround: %v", err)
	}
	if r.Converged || r.Attempts != 2 {
		t.Fatalf("survey=%+v want two attempts without convergence", r)
	}
	if c := surveyConfidence(&r, 2); c != confFloor {
		t.Fatalf("confidence=%v want floor", c)
	}
}

func TestSurveyNoise_Cancelled(t *testing.T) {
	d := newSimDev(t, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var r GroundSurvey
	if err := surveyNoise(ctx, d, 5, 0, &r, nil); err != context.Canceled {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if err := surveyNoise(context.Background(), d, 0, 0, &r, nil); err == nil {
		t.Fatalf("expected error for zero samples")
	}
}

func TestSurveyConfidence(t *testing.T) {
	tests := []struct {
		stddev   float64
		attempts int
		want     float64
	}{
		{0.1, 1, 1},
		{2, 1, 0.6*confFloor + 0.4},
		{0.1, 6, 0.6 + 0.4*0.5},
	}
	for _, tc := range tests {
		r := GroundSurvey{Converged: true, AltitudeStdDev: tc.stddev, Attempts: tc.attempts}
		if got := surveyConfidence(&r, 10); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("stddev=%v attempts=%d confidence=%v want %v", tc.stddev, tc.attempts, got, tc.want)
		}
	}
}

func TestWriteGroundSurvey(t *testing.T) {
	r := GroundSurvey{Version: 1, Source: "sim", GroundAltitude: 12.5, Converged: true}
	path := filepath.Join(t.TempDir(), SurveyFileName("sim", time.Unix(1700000000, 0)))
	if filepath.Base(path) != "sim_1700000000_ground_survey.json" {
		t.Fatalf("file name=%s", filepath.Base(path))
	}
	if err := WriteGroundSurvey(path, &r); err != nil {
		t.Fatalf("WriteGroundSurvey: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got GroundSurvey
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.GroundAltitude != 12.5 || !got.Converged {
		t.Fatalf("report=%+v", got)
	}
}
