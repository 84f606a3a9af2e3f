package althold

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/env"
)

func sample(alt float64, t time.Time) env.Sample {
	return env.Sample{Time: t, Altitude: alt, HasPressure: true, GroundSet: true}
}

func TestStep_ProportionalOnly(t *testing.T) {
	c := New(Gains{Kp: 0.5, Min: -10, Max: 10}, 20, 50*time.Millisecond)
	t0 := time.Unix(0, 0)

	cmd, ok := c.Step(sample(12, t0))
	if !ok {
		t.Fatalf("sample ignored")
	}
	if cmd.Error != 8 || math.Abs(cmd.Output-4) > 1e-9 {
		t.Fatalf("cmd=%+v want error 8 output 4", cmd)
	}

	cmd, _ = c.Step(sample(25, t0.Add(50*time.Millisecond)))
	if math.Abs(cmd.Output+2.5) > 1e-9 {
		t.Fatalf("output=%v want -2.5 above target", cmd.Output)
	}
}

func TestStep_ClampsOutput(t *testing.T) {
	c := New(Gains{Kp: 1, Min: -1, Max: 1}, 100, 50*time.Millisecond)
	cmd, _ := c.Step(sample(0, time.Unix(0, 0)))
	if cmd.Output != 1 {
		t.Fatalf("output=%v want 1", cmd.Output)
	}
}

func TestStep_IntegralAccumulates(t *testing.T) {
	c := New(Gains{Ki: 1, Min: -100, Max: 100}, 10, time.Second)
	t0 := time.Unix(0, 0)
	var out float64
	for i := 0; i < 3; i++ {
		cmd, _ := c.Step(sample(8, t0.Add(time.Duration(i)*time.Second)))
		out = cmd.Output
	}
	// 2 m error integrated over three one-second steps.
	if math.Abs(out-6) > 1e-9 {
		t.Fatalf("output=%v want 6", out)
	}
}

func TestStep_IgnoresUncalibratedSamples(t *testing.T) {
	c := New(Gains{Kp: 1, Min: -1, Max: 1}, 10, time.Second)
	if _, ok := c.Step(env.Sample{HasPressure: true}); ok {
		t.Fatalf("sample without ground reference used")
	}
	if _, ok := c.Step(env.Sample{GroundSet: true}); ok {
		t.Fatalf("sample without pressure used")
	}
}

func TestSetTarget(t *testing.T) {
	c := New(Gains{Kp: 1, Min: -100, Max: 100}, 10, time.Second)
	c.SetTarget(30)
	if c.Target() != 30 {
		t.Fatalf("target=%v want 30", c.Target())
	}
	cmd, _ := c.Step(sample(10, time.Unix(0, 0)))
	if cmd.Output != 20 {
		t.Fatalf("output=%v want 20", cmd.Output)
	}
}
