package app

import (
	"fmt"
	"math"
	"testing"

	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

// withChecksum appends the NMEA checksum to a sentence body starting at '$'.
func withChecksum(body string) string {
	var sum byte
	for i := 1; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("%s*%02X", body, sum)
}

func TestParseLine_SkipsNoise(t *testing.T) {
	for _, line := range []string{"", "   ", "garbage", "$GPRMC,broken*00"} {
		if s := parseLine(line); s != nil {
			t.Fatalf("parseLine(%q)=%v want nil", line, s)
		}
	}
}

func TestApplySentence_MergesGGAIntoRMC(t *testing.T) {
	var fix gps.Fix

	gga := parseLine(withChecksum("$GPGGA,015540.000,3150.68378,N,11711.93139,E,1,17,0.6,0051.6,M,0.0,M,,") + "\r\n")
	if gga == nil {
		t.Fatalf("GGA did not parse")
	}
	if applySentence(&fix, gga) {
		t.Fatalf("GGA alone should not publish")
	}
	if fix.FixQuality != "1" || fix.Satellites != 17 || fix.HDOP != 0.6 || fix.AltitudeM != 51.6 {
		t.Fatalf("fix after GGA=%+v", fix)
	}
	if !fix.HasAltitude() {
		t.Fatalf("expected altitude from GGA fix")
	}

	rmc := parseLine(withChecksum("$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W"))
	if rmc == nil {
		t.Fatalf("RMC did not parse")
	}
	if !applySentence(&fix, rmc) {
		t.Fatalf("RMC should publish")
	}
	if fix.Validity != "A" || fix.SpeedKnots != 173.8 || fix.CourseDeg != 231.8 {
		t.Fatalf("fix after RMC=%+v", fix)
	}
	if math.Abs(fix.Latitude-51.563667) > 1e-5 || math.Abs(fix.Longitude+0.704) > 1e-5 {
		t.Fatalf("lat=%v lon=%v", fix.Latitude, fix.Longitude)
	}
	// GGA fields survive the RMC merge.
	if fix.AltitudeM != 51.6 {
		t.Fatalf("altitude=%v want 51.6 kept from GGA", fix.AltitudeM)
	}
}
