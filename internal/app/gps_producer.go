package app

import (
	"bufio"
	"context"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/baro_altimeter/internal/config"
	"github.com/relabs-tech/baro_altimeter/internal/gps"
)

// applySentence merges an NMEA sentence into fix. It reports whether the fix
// should be published, which happens once per RMC.
func applySentence(fix *gps.Fix, sentence nmea.Sentence) bool {
	switch m := sentence.(type) {
	case nmea.RMC:
		fix.Time = m.Time.String()
		fix.Date = m.Date.String()
		fix.Latitude = m.Latitude
		fix.Longitude = m.Longitude
		fix.SpeedKnots = m.Speed
		fix.CourseDeg = m.Course
		fix.Validity = string(m.Validity)
		return true
	case nmea.GGA:
		fix.FixQuality = m.FixQuality
		fix.Satellites = m.NumSatellites
		fix.HDOP = m.HDOP
		fix.AltitudeM = m.Altitude
	}
	return false
}

// parseLine parses one line read from the receiver. Blank lines, lines that
// are not sentences and sentences with bad checksums return nil.
func parseLine(line string) nmea.Sentence {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nil
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return nil
	}
	return sentence
}

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes combined GPS fixes as JSON to the configured GPS topic. The GGA
// altitude lets consumers compare against the barometric altitude.
func RunGPSProducer(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	// Closing the port unblocks the reader on shutdown.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	reader := bufio.NewReader(port)
	var current gps.Fix

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("GPS read error: %v", err)
			return err
		}

		sentence := parseLine(line)
		if sentence == nil {
			continue
		}
		if !applySentence(&current, sentence) {
			continue
		}

		if err := publishJSON(client, cfg.TopicGPS, current); err != nil {
			log.Printf("GPS %v", err)
			continue
		}
		log.Printf("published GPS fix: %+v", current)
	}
}
