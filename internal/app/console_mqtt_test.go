package app

import (
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/althold"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

func TestFormatAltitudeLine(t *testing.T) {
	now := time.Unix(1000, 0)
	s := env.Sample{
		Time:           now.Add(-3 * time.Second),
		Temperature:    21.4,
		Pressure:       101325,
		RawAltitude:    112.4,
		GroundAltitude: 100.25,
		Altitude:       12.15,
		HasPressure:    true,
		GroundSet:      true,
	}
	line := formatAltitudeLine(s, now)
	for _, want := range []string{"ALT=  12.15m", "ground=100.25m", "P=101,325 Pa", "T= 21.4°C", "3 seconds ago"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line=%q missing %q", line, want)
		}
	}

	s.GroundSet = false
	if line := formatAltitudeLine(s, now); !strings.Contains(line, "ground=unset") {
		t.Fatalf("line=%q want ground=unset", line)
	}

	if line := formatAltitudeLine(env.Sample{Temperature: 20}, now); !strings.Contains(line, "waiting") {
		t.Fatalf("line=%q want waiting message before first pressure", line)
	}
}

func TestFormatGPSLine_AltitudeOnlyWithFix(t *testing.T) {
	f := gps.Fix{Latitude: 48.1, Longitude: 11.5, Validity: "A"}
	if line := formatGPSLine(f); strings.Contains(line, "alt=") {
		t.Fatalf("line=%q want no altitude without GGA fix", line)
	}
	f.FixQuality = "1"
	f.AltitudeM = 519.4
	f.Satellites = 9
	if line := formatGPSLine(f); !strings.Contains(line, "alt=519.4m sats=9") {
		t.Fatalf("line=%q want altitude and satellites", line)
	}
}

func TestFormatAltHoldLine(t *testing.T) {
	line := formatAltHoldLine(althold.Command{Target: 10, Altitude: 8, Error: 2, Output: 0.5})
	if !strings.Contains(line, "err=   2.00m") || !strings.Contains(line, "out= 0.500") {
		t.Fatalf("line=%q", line)
	}
}
