package gps

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "2025-12-06"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void), etc.

	// From GGA
	AltitudeM  float64 `json:"alt_m"`       // above mean sea level
	FixQuality string  `json:"fix_quality"` // "0" invalid, "1" GPS, "2" DGPS, ...
	Satellites int64   `json:"satellites"`
	HDOP       float64 `json:"hdop"`
}

// HasAltitude reports whether the GGA part carries a usable altitude.
func (f Fix) HasAltitude() bool {
	return f.FixQuality != "" && f.FixQuality != "0"
}
