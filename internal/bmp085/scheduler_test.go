package bmp085

import "testing"

func TestStep_Sequence(t *testing.T) {
	want := []struct {
		state State
		req   Request
	}{
		{State{AwaitingPressure, 0}, RequestPressure},
		{State{AwaitingPressure, 1}, RequestPressure},
		{State{AwaitingPressure, 2}, RequestPressure},
		{State{AwaitingPressure, 3}, RequestPressure},
		{State{AwaitingPressure, 4}, RequestPressure},
		{State{AwaitingTemperature, 0}, RequestTemperature},
		{State{AwaitingPressure, 0}, RequestPressure},
	}
	var s State
	for i, w := range want {
		var r Request
		s, r = s.Step()
		if s != w.state || r != w.req {
			t.Fatalf("step %d: state=%v req=%v want %v %v", i, s, r, w.state, w.req)
		}
	}
}

func TestTick_FivePressureSamplesPerTemperature(t *testing.T) {
	noSleep(t)
	f := newFakeConn()
	d := newTestDev(t, f, nil)

	// Temperature tick, then start counting.
	if err := d.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	f.commands = nil

	for i := 0; i < pressureBurst; i++ {
		if d.State().Phase != AwaitingPressure {
			t.Fatalf("tick %d: state=%v want awaiting pressure", i, d.State())
		}
		if err := d.Tick(); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if n := f.temperatureCommands(); n != 1 {
		t.Fatalf("temperature commands=%d want 1 (% X)", n, f.commands)
	}
	if s := d.State(); s.Phase != AwaitingTemperature || s.Burst != 0 {
		t.Fatalf("state=%v want awaiting temperature, burst 0", s)
	}
	if d.sample.PressureCount != pressureBurst {
		t.Fatalf("accumulated=%d want %d", d.sample.PressureCount, pressureBurst)
	}
}

func TestTick_PressureCommandEncodesOversampling(t *testing.T) {
	noSleep(t)
	for _, oss := range []Oversampling{UltraLowPower, Standard, HighResolution, UltraHighResolution} {
		f := newFakeConn()
		d := newTestDev(t, f, &Opts{Oversampling: oss, Smoothing: 1})
		if err := d.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		got := f.commands[len(f.commands)-1]
		if want := byte(0x34) + byte(oss)<<6; got != want {
			t.Fatalf("oss=%v command=%#x want %#x", oss, got, want)
		}
	}
}

func TestState_AfterPressure(t *testing.T) {
	var s State
	var got []bool
	for i := 0; i < 6; i++ {
		s, _ = s.Step()
		got = append(got, s.AfterPressure())
	}
	want := []bool{false, true, true, true, true, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d AfterPressure=%v want %v (got %v)", i, got[i], want[i], got)
		}
	}
}
