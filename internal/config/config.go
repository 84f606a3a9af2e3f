package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDGPS      string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTClientIDAltHold  string

	// Topics
	TopicAltitude string
	TopicGPS      string
	TopicAltHold  string

	// Barometer hardware
	BaroI2CBus  string // "" opens the first available bus
	BaroI2CAddr uint16

	// Barometer measurement
	// Oversampling: 0=ultra low power, 1=standard, 2=high res, 3=ultra high res
	BaroOversampling byte
	BaroSmoothing    float64 // low-pass factor in (0,1]
	BaroTickInterval int     // milliseconds between scheduler ticks
	PublishInterval  int     // milliseconds between MQTT publishes

	// Ground calibration
	GroundSamples     int
	GroundThreshold   float64 // meters
	GroundMaxRetries  int
	GroundSampleDelay int // milliseconds
	GroundSettleDelay int // milliseconds

	// Simulated sensor (-mock)
	SimAltitude float64 // meters
	SimClimb    float64 // m/s
	SimNoise    float64 // Pa

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort     int
	MetricsPort       int
	RegisterDebugPort int

	// Display
	DisplayUpdateInterval int    // milliseconds
	DisplayContent        string // what to show: "altitude", "gps", "both"

	// Altitude hold
	AltHoldTarget    float64 // meters above ground
	AltHoldKp        float64
	AltHoldKi        float64
	AltHoldKd        float64
	AltHoldOutputMin float64
	AltHoldOutputMax float64
	AltHoldInterval  int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages go through InitGlobal/Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTClientIDProducer: "baro-producer",
		MQTTClientIDGPS:      "baro-gps",
		MQTTClientIDConsole:  "baro-console",
		MQTTClientIDWeb:      "baro-web",
		MQTTClientIDDisplay:  "baro-display",
		MQTTClientIDAltHold:  "baro-althold",

		TopicAltitude: "inertial/baro/altitude",
		TopicGPS:      "inertial/gps",
		TopicAltHold:  "inertial/baro/althold",

		BaroI2CAddr:      0x77,
		BaroOversampling: 1,
		BaroSmoothing:    0.02,
		BaroTickInterval: 10,
		PublishInterval:  100,

		GroundSamples:     25,
		GroundThreshold:   10,
		GroundMaxRetries:  50,
		GroundSampleDelay: 12,
		GroundSettleDelay: 26,

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		ConsoleLogInterval: 1000,

		WebServerPort:     8080,
		MetricsPort:       9100,
		RegisterDebugPort: 8081,

		DisplayUpdateInterval: 500,
		DisplayContent:        "altitude",

		AltHoldTarget:    10,
		AltHoldKp:        0.8,
		AltHoldKi:        0.1,
		AltHoldKd:        0.05,
		AltHoldOutputMin: -1,
		AltHoldOutputMax: 1,
		AltHoldInterval:  50,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_ALTHOLD":
		c.MQTTClientIDAltHold = value

	// Topics
	case "TOPIC_ALTITUDE":
		c.TopicAltitude = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_ALTHOLD":
		c.TopicAltHold = value

	// Barometer hardware
	case "BARO_I2C_BUS":
		c.BaroI2CBus = value
	case "BARO_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid BARO_I2C_ADDR %q: %w", value, err)
		}
		if addr == 0 || addr > 0x7F {
			return fmt.Errorf("BARO_I2C_ADDR must be a 7-bit address, got %#x", addr)
		}
		c.BaroI2CAddr = uint16(addr)

	// Barometer measurement
	case "BARO_OVERSAMPLING":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BARO_OVERSAMPLING %q: %w", value, err)
		}
		if val < 0 || val > 3 {
			return fmt.Errorf("BARO_OVERSAMPLING must be 0-3 (0=ultra low power, 1=standard, 2=high res, 3=ultra high res), got %d", val)
		}
		c.BaroOversampling = byte(val)
	case "BARO_SMOOTHING":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BARO_SMOOTHING %q: %w", value, err)
		}
		if !(val > 0 && val <= 1) {
			return fmt.Errorf("BARO_SMOOTHING must be in (0,1], got %g", val)
		}
		c.BaroSmoothing = val
	case "BARO_TICK_INTERVAL":
		c.BaroTickInterval, err = parseInt(key, value, 1, 10000)
	case "PUBLISH_INTERVAL":
		c.PublishInterval, err = parseInt(key, value, 1, 60000)

	// Ground calibration
	case "GROUND_SAMPLES":
		c.GroundSamples, err = parseInt(key, value, 1, 1000)
	case "GROUND_THRESHOLD":
		c.GroundThreshold, err = parseFloat(key, value, 0, 1000)
	case "GROUND_MAX_RETRIES":
		c.GroundMaxRetries, err = parseInt(key, value, 0, 10000)
	case "GROUND_SAMPLE_DELAY":
		c.GroundSampleDelay, err = parseInt(key, value, 0, 10000)
	case "GROUND_SETTLE_DELAY":
		c.GroundSettleDelay, err = parseInt(key, value, 0, 10000)

	// Simulated sensor
	case "SIM_ALTITUDE":
		c.SimAltitude, err = parseFloat(key, value, -500, 9000)
	case "SIM_CLIMB":
		c.SimClimb, err = parseFloat(key, value, -100, 100)
	case "SIM_NOISE":
		c.SimNoise, err = parseFloat(key, value, 0, 1000)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "METRICS_PORT":
		c.MetricsPort, err = parseInt(key, value, 0, 65535)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseInt(key, value, 1, 65535)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DISPLAY_CONTENT":
		switch value {
		case "altitude", "gps", "both":
			c.DisplayContent = value
		default:
			return fmt.Errorf("DISPLAY_CONTENT must be altitude, gps or both, got %q", value)
		}

	// Altitude hold
	case "ALTHOLD_TARGET":
		c.AltHoldTarget, err = parseFloat(key, value, -1000, 10000)
	case "ALTHOLD_KP":
		c.AltHoldKp, err = parseFloat(key, value, 0, 1000)
	case "ALTHOLD_KI":
		c.AltHoldKi, err = parseFloat(key, value, 0, 1000)
	case "ALTHOLD_KD":
		c.AltHoldKd, err = parseFloat(key, value, 0, 1000)
	case "ALTHOLD_OUTPUT_MIN":
		c.AltHoldOutputMin, err = parseFloat(key, value, -1e6, 1e6)
	case "ALTHOLD_OUTPUT_MAX":
		c.AltHoldOutputMax, err = parseFloat(key, value, -1e6, 1e6)
	case "ALTHOLD_INTERVAL":
		c.AltHoldInterval, err = parseInt(key, value, 1, 10000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string, min, max int) (int, error) {
	val, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, val)
	}
	return val, nil
}

func parseFloat(key, value string, min, max float64) (float64, error) {
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%s must be %g to %g, got %g", key, min, max, val)
	}
	return val, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.AltHoldOutputMin >= c.AltHoldOutputMax {
		return fmt.Errorf("ALTHOLD_OUTPUT_MIN (%g) must be below ALTHOLD_OUTPUT_MAX (%g)",
			c.AltHoldOutputMin, c.AltHoldOutputMax)
	}
	return nil
}

// Millis converts a millisecond config value to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
