package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Serial channel. An empty SerialPort makes the node write telemetry
	// to stdout instead of a UART device.
	SerialPort string
	SerialBaud int

	// MQTT
	MQTTBroker            string
	MQTTClientIDReader    string
	MQTTClientIDConsole   string
	MQTTClientIDWeb       string
	MQTTClientIDDisplay   string
	MQTTClientIDSimulator string

	// Topics
	TopicTelemetry string
	TopicEvents    string

	// Ultrasonic ranging sensor (HC-SR04 style)
	TriggerPin    string
	EchoPin       string
	EchoTimeoutMS int

	// Gas sensor ADC (ADS1115 over I2C)
	GasI2CBus     string
	GasADCChannel int

	// Filtering
	MedianSamples int     // samples per median batch
	SampleGapMS   int     // delay between ranging pings, milliseconds
	GasAlpha      float64 // EMA smoothing factor, 0 < alpha <= 1

	// Anomaly thresholds. Water level is measured as distance from the
	// sensor down to the water surface, in centimeters.
	BlockageThresholdCm float64 // below this: blockage
	LeakageThresholdCm  float64 // above this: leakage
	GasThreshold        float64 // smoothed gas reading above this: gas hazard

	// Sampling loop timing
	ReadIntervalMS int // milliseconds between readings
	BootDelayMS    int // stabilization delay after the boot record
	FirmwareID     string

	// Hardware watchdog. An empty WatchdogDevice disables supervision
	// (bench runs without /dev/watchdog).
	WatchdogDevice   string
	WatchdogTimeoutS int

	// Web server
	WebServerPort int

	// CSV logging on the reader side. Empty path disables it.
	CSVLogPath string
	CSVMaxRows int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config pre-filled with the stock DrainGuard values.
// Keys present in the config file override these.
func defaults() *Config {
	return &Config{
		SerialBaud: 115200,

		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDReader:    "drainguard-reader",
		MQTTClientIDConsole:   "drainguard-console",
		MQTTClientIDWeb:       "drainguard-web",
		MQTTClientIDDisplay:   "drainguard-display",
		MQTTClientIDSimulator: "drainguard-simulator",

		TopicTelemetry: "drainguard/telemetry",
		TopicEvents:    "drainguard/events",

		TriggerPin:    "17",
		EchoPin:       "27",
		EchoTimeoutMS: 30,

		GasADCChannel: 0,

		MedianSamples: 5,
		SampleGapMS:   30,
		GasAlpha:      0.2,

		BlockageThresholdCm: 10.0,
		LeakageThresholdCm:  100.0,
		GasThreshold:        1500,

		ReadIntervalMS: 2000,
		BootDelayMS:    2000,
		FirmwareID:     "drainguard-node/1.0",

		WatchdogDevice:   "/dev/watchdog",
		WatchdogTimeoutS: 8,

		WebServerPort: 8080,

		CSVMaxRows: 10000,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD":
		baud, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD %q: %w", value, err)
		}
		c.SerialBaud = baud

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_READER":
		c.MQTTClientIDReader = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_SIMULATOR":
		c.MQTTClientIDSimulator = value

	// Topics
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value

	// Ultrasonic
	case "TRIGGER_PIN":
		c.TriggerPin = value
	case "ECHO_PIN":
		c.EchoPin = value
	case "ECHO_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ECHO_TIMEOUT_MS %q: %w", value, err)
		}
		if ms <= 0 {
			return fmt.Errorf("ECHO_TIMEOUT_MS must be positive, got %d", ms)
		}
		c.EchoTimeoutMS = ms

	// Gas ADC
	case "GAS_I2C_BUS":
		c.GasI2CBus = value
	case "GAS_ADC_CHANNEL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GAS_ADC_CHANNEL %q: %w", value, err)
		}
		if ch < 0 || ch > 3 {
			return fmt.Errorf("GAS_ADC_CHANNEL must be 0-3, got %d", ch)
		}
		c.GasADCChannel = ch

	// Filtering
	case "MEDIAN_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MEDIAN_SAMPLES %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("MEDIAN_SAMPLES must be at least 1, got %d", n)
		}
		c.MedianSamples = n
	case "SAMPLE_GAP_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_GAP_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("SAMPLE_GAP_MS must not be negative, got %d", ms)
		}
		c.SampleGapMS = ms
	case "GAS_ALPHA":
		a, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GAS_ALPHA %q: %w", value, err)
		}
		if a <= 0 || a > 1 {
			return fmt.Errorf("GAS_ALPHA must be in (0, 1], got %g", a)
		}
		c.GasAlpha = a

	// Thresholds
	case "BLOCKAGE_THRESHOLD_CM":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BLOCKAGE_THRESHOLD_CM %q: %w", value, err)
		}
		c.BlockageThresholdCm = v
	case "LEAKAGE_THRESHOLD_CM":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid LEAKAGE_THRESHOLD_CM %q: %w", value, err)
		}
		c.LeakageThresholdCm = v
	case "GAS_THRESHOLD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GAS_THRESHOLD %q: %w", value, err)
		}
		c.GasThreshold = v

	// Timing
	case "READ_INTERVAL_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid READ_INTERVAL_MS %q: %w", value, err)
		}
		if ms <= 0 {
			return fmt.Errorf("READ_INTERVAL_MS must be positive, got %d", ms)
		}
		c.ReadIntervalMS = ms
	case "BOOT_DELAY_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BOOT_DELAY_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("BOOT_DELAY_MS must not be negative, got %d", ms)
		}
		c.BootDelayMS = ms
	case "FIRMWARE_ID":
		c.FirmwareID = value

	// Watchdog
	case "WATCHDOG_DEVICE":
		c.WatchdogDevice = value
	case "WATCHDOG_TIMEOUT_S":
		s, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WATCHDOG_TIMEOUT_S %q: %w", value, err)
		}
		if s <= 0 {
			return fmt.Errorf("WATCHDOG_TIMEOUT_S must be positive, got %d", s)
		}
		c.WatchdogTimeoutS = s

	// Web server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// CSV log
	case "CSV_LOG_PATH":
		c.CSVLogPath = value
	case "CSV_MAX_ROWS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CSV_MAX_ROWS %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("CSV_MAX_ROWS must be at least 1, got %d", n)
		}
		c.CSVMaxRows = n

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that the configuration is internally consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TriggerPin == "" {
		return fmt.Errorf("TRIGGER_PIN is required")
	}
	if c.EchoPin == "" {
		return fmt.Errorf("ECHO_PIN is required")
	}
	if c.BlockageThresholdCm >= c.LeakageThresholdCm {
		return fmt.Errorf("BLOCKAGE_THRESHOLD_CM (%g) must be below LEAKAGE_THRESHOLD_CM (%g)",
			c.BlockageThresholdCm, c.LeakageThresholdCm)
	}
	if c.FirmwareID == "" {
		return fmt.Errorf("FIRMWARE_ID is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
