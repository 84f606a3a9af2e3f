package app

import (
	"image"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

type fakeScreen struct {
	draws int
	last  image.Image
}

func (f *fakeScreen) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (f *fakeScreen) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.draws++
	f.last = src
	return nil
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func samePixels(a, b *image1bit.VerticalLSB) bool {
	if len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

func TestRender_AltitudeWaitsForPressure(t *testing.T) {
	waiting := renderAltitude(env.Sample{}, false)
	if litPixels(waiting) == 0 {
		t.Fatalf("waiting screen is blank")
	}
	noPressure := renderAltitude(env.Sample{Temperature: 20}, true)
	if !samePixels(waiting, noPressure) {
		t.Fatalf("sample without pressure should show the waiting screen")
	}
	live := renderAltitude(env.Sample{Altitude: 12.3, PressureHPa: 1000, HasPressure: true, GroundSet: true}, true)
	if samePixels(waiting, live) {
		t.Fatalf("live altitude rendered as waiting screen")
	}
	if live.Bounds() != image.Rect(0, 0, 128, 64) {
		t.Fatalf("bounds=%v", live.Bounds())
	}
}

func TestRender_Content(t *testing.T) {
	f := displayFrame{
		sample:     env.Sample{Altitude: 5, FilteredAltitude: 105, HasPressure: true},
		haveSample: true,
		fix:        gps.Fix{Latitude: -33.9, Longitude: 151.2, FixQuality: "1", AltitudeM: 40},
		haveGPS:    true,
	}
	for _, content := range []string{"altitude", "gps", "both"} {
		img, err := render(content, f)
		if err != nil {
			t.Fatalf("render(%s): %v", content, err)
		}
		if litPixels(img) == 0 {
			t.Fatalf("render(%s) is blank", content)
		}
	}
	if _, err := render("imu", f); err == nil {
		t.Fatalf("expected error for unknown content")
	}
}

func TestShow_DrawsFullScreen(t *testing.T) {
	var s fakeScreen
	if err := show(&s, renderSplash()); err != nil {
		t.Fatalf("show: %v", err)
	}
	if s.draws != 1 || s.last == nil {
		t.Fatalf("draws=%d", s.draws)
	}
}

func TestDisplayData_Frame(t *testing.T) {
	var d DisplayData
	if f := d.frame(); f.haveSample || f.haveGPS {
		t.Fatalf("frame=%+v want empty", f)
	}
	d.setSample(env.Sample{Altitude: 3})
	d.setFix(gps.Fix{Satellites: 4})
	f := d.frame()
	if !f.haveSample || f.sample.Altitude != 3 || !f.haveGPS || f.fix.Satellites != 4 {
		t.Fatalf("frame=%+v", f)
	}
}
