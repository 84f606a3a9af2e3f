package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	humanize "github.com/dustin/go-humanize"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/baro_altimeter/internal/althold"
	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/env"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

// formatAltitudeLine renders an altitude sample for the console.
func formatAltitudeLine(s env.Sample, now time.Time) string {
	if !s.HasPressure {
		return fmt.Sprintf("[BARO]  T=%5.1f°C  waiting for first pressure sample", s.Temperature)
	}
	ground := "ground=unset"
	if s.GroundSet {
		ground = fmt.Sprintf("ground=%.2fm", s.GroundAltitude)
	}
	return fmt.Sprintf(
		"[BARO]  ALT=%7.2fm  raw=%8.2fm  %s  P=%s Pa  T=%5.1f°C  (%s)",
		s.Altitude, s.RawAltitude, ground,
		humanize.Comma(int64(s.Pressure)), s.Temperature,
		humanize.RelTime(s.Time, now, "ago", "from now"),
	)
}

// formatGPSLine renders a GPS fix, including its altitude when the GGA
// fields carry one.
func formatGPSLine(f gps.Fix) string {
	line := fmt.Sprintf(
		"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
	)
	if f.HasAltitude() {
		line += fmt.Sprintf(" alt=%.1fm sats=%d hdop=%.1f", f.AltitudeM, f.Satellites, f.HDOP)
	}
	return line
}

func formatAltHoldLine(c althold.Command) string {
	return fmt.Sprintf(
		"[HOLD]  target=%7.2fm  alt=%7.2fm  err=%7.2fm  out=%6.3f",
		c.Target, c.Altitude, c.Error, c.Output,
	)
}

// RunConsoleMQTT prints altitude, GPS and altitude hold messages until ctx
// is done.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, cfg.TopicAltitude, func(_ mqtt.Client, msg mqtt.Message) {
		var s env.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: altitude unmarshal error: %v", err)
			return
		}
		fmt.Println(formatAltitudeLine(s, time.Now()))
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicGPS, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}
		fmt.Println(formatGPSLine(f))
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicAltHold, func(_ mqtt.Client, msg mqtt.Message) {
		var c althold.Command
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("console: althold unmarshal error: %v", err)
			return
		}
		fmt.Println(formatAltHoldLine(c))
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}
