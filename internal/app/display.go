package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/baro_altimeter/internal/bus"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

// screen is the part of *ssd1306.Dev the display loop draws on.
type screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	sample     env.Sample
	haveSample bool

	fix     gps.Fix
	haveGPS bool
}

func (d *DisplayData) setSample(s env.Sample) {
	d.mu.Lock()
	d.sample = s
	d.haveSample = true
	d.mu.Unlock()
}

func (d *DisplayData) setFix(f gps.Fix) {
	d.mu.Lock()
	d.fix = f
	d.haveGPS = true
	d.mu.Unlock()
}

// displayFrame is a copy of DisplayData taken for one refresh.
type displayFrame struct {
	sample     env.Sample
	haveSample bool
	fix        gps.Fix
	haveGPS    bool
}

func (d *DisplayData) frame() displayFrame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displayFrame{sample: d.sample, haveSample: d.haveSample, fix: d.fix, haveGPS: d.haveGPS}
}

// RunDisplay shows altitude and/or GPS data on the SSD1306 that shares the
// barometer's I²C bus, until ctx is done.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()

	b, err := bus.Open(cfg.BaroI2CBus)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer b.Close()

	dev, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on %s", b)
	defer dev.Halt()

	if err := show(dev, renderSplash()); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeForContent(client, cfg, data); err != nil {
		return fmt.Errorf("failed to subscribe for display: %w", err)
	}

	ticker := time.NewTicker(config.Millis(cfg.DisplayUpdateInterval))
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			img, err := render(cfg.DisplayContent, data.frame())
			if err == nil {
				err = show(dev, img)
			}
			if err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

func subscribeForContent(client mqtt.Client, cfg *config.Config, data *DisplayData) error {
	if cfg.DisplayContent == "altitude" || cfg.DisplayContent == "both" {
		err := subscribe(client, cfg.TopicAltitude, func(_ mqtt.Client, msg mqtt.Message) {
			var s env.Sample
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Printf("display: altitude unmarshal error: %v", err)
				return
			}
			data.setSample(s)
		})
		if err != nil {
			return err
		}
	}
	if cfg.DisplayContent == "gps" || cfg.DisplayContent == "both" {
		err := subscribe(client, cfg.TopicGPS, func(_ mqtt.Client, msg mqtt.Message) {
			var f gps.Fix
			if err := json.Unmarshal(msg.Payload(), &f); err != nil {
				log.Printf("display: gps unmarshal error: %v", err)
				return
			}
			data.setFix(f)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func show(dev screen, img *image1bit.VerticalLSB) error {
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// render draws one frame for content.
func render(content string, f displayFrame) (*image1bit.VerticalLSB, error) {
	switch content {
	case "altitude":
		return renderAltitude(f.sample, f.haveSample), nil
	case "gps":
		return renderGPS(f.fix, f.haveGPS), nil
	case "both":
		return renderBoth(f), nil
	default:
		return nil, fmt.Errorf("unknown display content type: %s", content)
	}
}

// textImage draws lines of 7x13 text at the given baselines on a blank
// 128x64 image.
func textImage(lines ...textLine) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for _, l := range lines {
		drawer.Dot = fixed.P(l.x, l.y)
		drawer.DrawString(l.text)
	}
	return img
}

type textLine struct {
	x, y int
	text string
}

func renderAltitude(s env.Sample, haveData bool) *image1bit.VerticalLSB {
	if !haveData || !s.HasPressure {
		return textImage(
			textLine{0, 26, "Altitude"},
			textLine{0, 39, "Waiting..."},
		)
	}
	ground := "Gnd: --"
	if s.GroundSet {
		ground = fmt.Sprintf("Gnd: %.1fm", s.GroundAltitude)
	}
	return textImage(
		textLine{0, 13, fmt.Sprintf("Alt: %7.2fm", s.Altitude)},
		textLine{0, 26, ground},
		textLine{0, 39, fmt.Sprintf("P: %.1fhPa", s.PressureHPa)},
		textLine{0, 52, fmt.Sprintf("T: %.1fC", s.Temperature)},
	)
}

func hemisphere(v float64, pos, neg string) (float64, string) {
	if v < 0 {
		return -v, neg
	}
	return v, pos
}

func renderGPS(f gps.Fix, haveData bool) *image1bit.VerticalLSB {
	if !haveData {
		return textImage(
			textLine{0, 26, "GPS Position"},
			textLine{0, 39, "Waiting..."},
		)
	}
	lat, latDir := hemisphere(f.Latitude, "N", "S")
	lon, lonDir := hemisphere(f.Longitude, "E", "W")
	alt := "Alt: --"
	if f.HasAltitude() {
		alt = fmt.Sprintf("Alt: %.0fm", f.AltitudeM)
	}
	return textImage(
		textLine{0, 13, fmt.Sprintf("%.4f%s", lat, latDir)},
		textLine{0, 26, fmt.Sprintf("%.4f%s", lon, lonDir)},
		textLine{0, 39, alt},
		textLine{0, 52, fmt.Sprintf("Sats: %d", f.Satellites)},
	)
}

// renderBoth shows the barometric altitude above ground next to the GPS
// altitude above sea level.
func renderBoth(f displayFrame) *image1bit.VerticalLSB {
	baro := "Baro: --"
	if f.haveSample && f.sample.HasPressure {
		baro = fmt.Sprintf("Baro: %.1fm", f.sample.Altitude)
	}
	msl := "MSL:  --"
	if f.haveSample && f.sample.HasPressure {
		msl = fmt.Sprintf("MSL:  %.1fm", f.sample.FilteredAltitude)
	}
	gpsAlt := "GPS:  --"
	if f.haveGPS && f.fix.HasAltitude() {
		gpsAlt = fmt.Sprintf("GPS:  %.1fm", f.fix.AltitudeM)
	}
	return textImage(
		textLine{0, 13, baro},
		textLine{0, 26, msl},
		textLine{0, 39, gpsAlt},
	)
}

func renderSplash() *image1bit.VerticalLSB {
	return textImage(
		textLine{10, 26, "Baro Altimeter"},
		textLine{5, 43, "Waiting for"},
		textLine{25, 56, "altitude"},
	)
}
