package sensors

import (
	"fmt"
	"time"

	"github.com/relabs-tech/baro_altimeter/internal/bmp085"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// Reference reads the same chip through periph's bmxx80 driver. It drives
// its own conversions, so it must not run while a Baro is ticking.
type Reference struct {
	dev *bmxx80.Dev
}

var _ Sensor = (*Reference)(nil)

// OpenReference probes addr on b with bmxx80.
func OpenReference(b i2c.Bus, addr uint16) (*Reference, error) {
	dev, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("reference: bmxx80 init: %w", err)
	}
	return &Reference{dev: dev}, nil
}

// Reading runs one forced conversion.
func (r *Reference) Reading() (env.Sample, error) {
	var e physic.Env
	if err := r.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("reference: sense: %w", err)
	}
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	alt := bmp085.Altitude(pressurePa)
	return env.Sample{
		Source:           "reference",
		Time:             time.Now(),
		Temperature:      e.Temperature.Celsius(),
		Pressure:         pressurePa,
		PressureHPa:      pressurePa / 100.0, // 1 hPa = 100 Pa
		RawAltitude:      alt,
		FilteredAltitude: alt,
		Altitude:         alt,
		HasPressure:      true,
	}, nil
}

func (r *Reference) Describe() Info {
	return Info{
		Name:       r.dev.String(),
		Type:       "pressure",
		Version:    1,
		MinValue:   30000,
		MaxValue:   110000,
		Resolution: 3,
		MinDelay:   26 * time.Millisecond,
	}
}

// Halt stops the periph driver.
func (r *Reference) Halt() error {
	return r.dev.Halt()
}

// Compare returns the differences got minus ref in °C, Pa and meters.
func Compare(got, ref env.Sample) (dT, dP, dAlt float64) {
	return got.Temperature - ref.Temperature, got.Pressure - ref.Pressure, got.RawAltitude - ref.RawAltitude
}

// CrossCheck reads the chip once through the reference driver and returns
// it next to the driver's latest sample. The pending conversion is re-issued
// afterwards so ticking can carry on.
func (b *Baro) CrossCheck(addr uint16) (got, ref env.Sample, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	got = SampleFromSnapshot(b.source, b.dev.Snapshot(), time.Now())
	r, err := OpenReference(b.bus, addr)
	if err != nil {
		return got, ref, err
	}
	ref, err = r.Reading()
	if rerr := b.dev.Restart(); err == nil && rerr != nil {
		err = fmt.Errorf("baro: resync: %w", rerr)
	}
	return got, ref, err
}
