package env

import "time"

// Sample represents a single barometric measurement with its derived altitudes.
type Sample struct {
	Source string    `json:"source"` // "baro", "sim" or "reference"
	Time   time.Time `json:"time"`

	Temperature float64 `json:"temp_c"`       // °C
	Pressure    float64 `json:"pressure_pa"`  // Pa
	PressureHPa float64 `json:"pressure_hpa"` // 1 hPa = 100 Pa

	RawAltitude      float64 `json:"raw_alt_m"`      // unfiltered, above sea level
	FilteredAltitude float64 `json:"filtered_alt_m"` // low-pass, above sea level
	GroundAltitude   float64 `json:"ground_alt_m"`   // zero reference
	Altitude         float64 `json:"alt_m"`          // filtered minus ground

	HasPressure bool `json:"has_pressure"`
	GroundSet   bool `json:"ground_set"`
}

// Age returns how old the sample is at now.
func (s Sample) Age(now time.Time) time.Duration {
	if s.Time.IsZero() {
		return 0
	}
	return now.Sub(s.Time)
}
