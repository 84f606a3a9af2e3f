package sensors

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
)

func mockConfig() *config.Config {
	cfg := config.Default()
	cfg.SimAltitude = 300
	cfg.BaroSmoothing = 1
	cfg.GroundSamples = 5
	cfg.GroundSampleDelay = 0
	cfg.GroundSettleDelay = 0
	return cfg
}

func TestOpenBaro_Mock(t *testing.T) {
	b, err := OpenBaro(mockConfig(), true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	defer b.Close()

	if b.Sim() == nil {
		t.Fatalf("expected simulated sensor")
	}
	var s = b.Sample(time.Now())
	for i := 0; i < 2; i++ {
		if s, err = b.Reading(); err != nil {
			t.Fatalf("Reading: %v", err)
		}
	}
	if s.Source != "sim" || !s.HasPressure {
		t.Fatalf("sample=%+v want sim source with pressure", s)
	}
	if math.Abs(s.RawAltitude-300) > 1 {
		t.Fatalf("raw altitude=%v want ~300", s.RawAltitude)
	}
	if math.Abs(s.Temperature-25) > 0.05 {
		t.Fatalf("temperature=%v want 25", s.Temperature)
	}
	if s.PressureHPa*100 != s.Pressure {
		t.Fatalf("hPa=%v Pa=%v", s.PressureHPa, s.Pressure)
	}
}

func TestBaro_CalibrateGround(t *testing.T) {
	b, err := OpenBaro(mockConfig(), true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	defer b.Close()

	ground, err := b.CalibrateGround(context.Background(), GroundCalibrator(mockConfig()))
	if err != nil {
		t.Fatalf("CalibrateGround: %v", err)
	}
	s := b.Sample(time.Now())
	if !s.GroundSet || s.GroundAltitude != ground || s.Altitude != 0 {
		t.Fatalf("sample=%+v want ground %v and zero altitude", s, ground)
	}
}

func TestDescribe(t *testing.T) {
	b, err := OpenBaro(mockConfig(), true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	defer b.Close()

	info := b.Describe()
	if info.Name != "BMP085" || info.Type != "pressure" {
		t.Fatalf("info=%+v", info)
	}
	if info.MinDelay != bmp085.Standard.Latency() || info.Resolution != 5 {
		t.Fatalf("info=%+v want standard oversampling limits", info)
	}
	if info.MinValue >= info.MaxValue {
		t.Fatalf("info=%+v bad range", info)
	}
}

func TestSampleFromSnapshot(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := SampleFromSnapshot("baro", bmp085.Snapshot{
		Temperature: 215,
		Pressure:    95000,
		RawAltitude: 540,
		Filtered:    538,
		Ground:      500,
		Relative:    38,
		HasPressure: true,
		GroundSet:   true,
	}, now)
	if s.Temperature != 21.5 || s.Pressure != 95000 || s.PressureHPa != 950 {
		t.Fatalf("sample=%+v", s)
	}
	if s.Altitude != 38 || s.GroundAltitude != 500 || s.FilteredAltitude != 538 {
		t.Fatalf("sample=%+v", s)
	}
	if s.Age(now.Add(time.Second)) != time.Second {
		t.Fatalf("age=%v want 1s", s.Age(now.Add(time.Second)))
	}
}

func TestReference_MatchesDriver(t *testing.T) {
	b, err := OpenBaro(mockConfig(), true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	defer b.Close()

	ref, err := OpenReference(b.Bus(), bmp085.DefaultAddress)
	if err != nil {
		t.Fatalf("OpenReference: %v", err)
	}
	want, err := ref.Reading()
	if err != nil {
		t.Fatalf("reference Reading: %v", err)
	}

	// The reference left its own command in the control register.
	if err := b.Resync(); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	var got env.Sample
	for i := 0; i < 3; i++ {
		if got, err = b.Reading(); err != nil {
			t.Fatalf("Reading: %v", err)
		}
	}
	dT, dP, _ := Compare(got, want)
	if math.Abs(dT) > 1 || math.Abs(dP) > 100 {
		t.Fatalf("driver %+v reference %+v: dT=%v dP=%v", got, want, dT, dP)
	}
}

func TestBaro_Registers(t *testing.T) {
	b, err := OpenBaro(mockConfig(), true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	defer b.Close()

	id, err := b.ReadRegister(0xD0)
	if err != nil || id != 0x55 {
		t.Fatalf("chip id=%#x err=%v want 0x55", id, err)
	}
	regs, err := b.ReadAllRegisters()
	if err != nil {
		t.Fatalf("ReadAllRegisters: %v", err)
	}
	ac1 := bmp085.DatasheetCalibration.AC1
	if regs[0xAA] != byte(ac1>>8) || regs[0xAB] != byte(ac1) {
		t.Fatalf("AC1 bytes=%#x %#x want %#x %#x", regs[0xAA], regs[0xAB], byte(ac1>>8), byte(ac1))
	}
	if _, ok := regs[0xE0]; ok {
		t.Fatalf("write-only register read back")
	}
	if err := b.WriteRegister(0xAA, 0); err == nil {
		t.Fatalf("expected calibration register to be read-only")
	}
	if err := b.WriteRegister(0xF4, 0x2E); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	if err := b.Resync(); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := b.Reading(); err != nil {
			t.Fatalf("Reading after resync: %v", err)
		}
	}
	if s := b.Sample(time.Now()); !s.HasPressure || s.Temperature != 25 {
		t.Fatalf("sample after resync=%+v", s)
	}
}

func TestBMP085RegisterMap(t *testing.T) {
	regs := BMP085RegisterMap()
	if len(regs) != 28 {
		t.Fatalf("registers=%d want 28", len(regs))
	}
	if regs[0].Address != "0xAA" || regs[21].Address != "0xBF" {
		t.Fatalf("calibration range %s..%s want 0xAA..0xBF", regs[0].Address, regs[21].Address)
	}
}

func TestBaro_CrossCheck(t *testing.T) {
	b, err := OpenBaro(mockConfig(), true)
	if err != nil {
		t.Fatalf("OpenBaro: %v", err)
	}
	defer b.Close()

	for i := 0; i < 2; i++ {
		if _, err := b.Reading(); err != nil {
			t.Fatalf("Reading: %v", err)
		}
	}
	got, ref, err := b.CrossCheck(bmp085.DefaultAddress)
	if err != nil {
		t.Fatalf("CrossCheck: %v", err)
	}
	if ref.Source != "reference" || got.Source != "sim" {
		t.Fatalf("sources=%q/%q", got.Source, ref.Source)
	}
	if dT, dP, _ := Compare(got, ref); math.Abs(dT) > 1 || math.Abs(dP) > 100 {
		t.Fatalf("dT=%v dP=%v", dT, dP)
	}
	// Ticking continues with the scheduler's own conversion.
	for i := 0; i < 6; i++ {
		if _, err := b.Reading(); err != nil {
			t.Fatalf("Reading after cross-check: %v", err)
		}
	}
	if s := b.Sample(time.Now()); math.Abs(s.RawAltitude-300) > 1 {
		t.Fatalf("raw altitude=%v want ~300 after cross-check", s.RawAltitude)
	}
}
