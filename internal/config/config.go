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
	// Simulate runs against the in-process gyro instead of hardware.
	Simulate bool

	// Gyro Hardware
	GyroSPIDevice  string
	GyroSPISpeedHz int64
	GyroDRDYPin    string

	// Start button (rising edge starts a session)
	StartButtonPin string

	// Bus
	BusTimeout time.Duration
	BusRetries int

	// Session timing
	SampleTimeout time.Duration
	Countdown     time.Duration
	ResultHold    time.Duration

	// Display
	Display               string // "console" or "oled"
	DisplayI2CBus         string // empty selects the default bus
	DisplayUpdateInterval time.Duration

	// Register debug tool
	RegisterDebugPort     int
	RegisterDebugWritable []AddressRange
}

// Defaults returns the configuration used for keys absent from the file.
func Defaults() *Config {
	return &Config{
		GyroSPISpeedHz:        1000000,
		BusTimeout:            50 * time.Millisecond,
		BusRetries:            3,
		SampleTimeout:         time.Second,
		Countdown:             3 * time.Second,
		ResultHold:            5 * time.Second,
		Display:               "console",
		DisplayUpdateInterval: 250 * time.Millisecond,
		RegisterDebugPort:     8081,
		RegisterDebugWritable: []AddressRange{{Lo: 0x20, Hi: 0x25}, {Lo: 0x2E, Hi: 0x2E}, {Lo: 0x30, Hi: 0x30}, {Lo: 0x32, Hi: 0x38}},
	}
}

// Package-level singleton state:
//   - globalConfig is unexported so other packages go through Get.
//   - configOnce makes InitGlobal run once.
//   - configMu guards globalConfig; Get takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Defaults()
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

// parseMillis parses a non-negative duration given in milliseconds.
func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("%s must be >= 0 ms, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "SIMULATE":
		c.Simulate, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SIMULATE %q: %w", value, err)
		}

	// Gyro Hardware
	case "GYRO_SPI_DEVICE":
		c.GyroSPIDevice = value
	case "GYRO_SPI_SPEED_HZ":
		hz, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GYRO_SPI_SPEED_HZ %q: %w", value, err)
		}
		// L3GD20 SPI clock tops out at 10 MHz
		if hz <= 0 || hz > 10000000 {
			return fmt.Errorf("GYRO_SPI_SPEED_HZ must be 1-10000000, got %d", hz)
		}
		c.GyroSPISpeedHz = hz
	case "GYRO_DRDY_PIN":
		c.GyroDRDYPin = value
	case "START_BUTTON_PIN":
		c.StartButtonPin = value

	// Bus
	case "BUS_TIMEOUT":
		c.BusTimeout, err = parseMillis(key, value)
		if err != nil {
			return err
		}
		if c.BusTimeout == 0 {
			return fmt.Errorf("BUS_TIMEOUT must be > 0")
		}
	case "BUS_RETRIES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BUS_RETRIES %q: %w", value, err)
		}
		if n < 0 || n > 10 {
			return fmt.Errorf("BUS_RETRIES must be 0-10, got %d", n)
		}
		c.BusRetries = n

	// Session timing
	case "SAMPLE_TIMEOUT":
		c.SampleTimeout, err = parseMillis(key, value)
		if err != nil {
			return err
		}
		if c.SampleTimeout == 0 {
			return fmt.Errorf("SAMPLE_TIMEOUT must be > 0")
		}
	case "COUNTDOWN":
		c.Countdown, err = parseMillis(key, value)
		if err != nil {
			return err
		}
	case "RESULT_HOLD":
		c.ResultHold, err = parseMillis(key, value)
		if err != nil {
			return err
		}

	// Display
	case "DISPLAY":
		switch value {
		case "console", "oled":
			c.Display = value
		default:
			return fmt.Errorf("DISPLAY must be console or oled, got %q", value)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseMillis(key, value)
		if err != nil {
			return err
		}

	// Register debug tool
	case "REGISTER_DEBUG_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REGISTER_DEBUG_PORT %q: %w", value, err)
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("REGISTER_DEBUG_PORT must be 1-65535, got %d", port)
		}
		c.RegisterDebugPort = port
	case "REGISTER_DEBUG_WRITABLE":
		ranges, err := ParseAddressRanges(value)
		if err != nil {
			return fmt.Errorf("invalid REGISTER_DEBUG_WRITABLE %q: %w", value, err)
		}
		c.RegisterDebugWritable = ranges

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.Simulate {
		return nil
	}
	if c.GyroSPIDevice == "" {
		return fmt.Errorf("GYRO_SPI_DEVICE is required")
	}
	if c.GyroDRDYPin == "" {
		return fmt.Errorf("GYRO_DRDY_PIN is required")
	}
	if c.StartButtonPin == "" {
		return fmt.Errorf("START_BUTTON_PIN is required")
	}
	return nil
}

// AddressRange is an inclusive register address range.
type AddressRange struct {
	Lo, Hi byte
}

// Contains reports whether addr is in r.
func (r AddressRange) Contains(addr byte) bool {
	return addr >= r.Lo && addr <= r.Hi
}

// ParseAddressRanges parses a comma-separated list of addresses and
// inclusive ranges, e.g. "0x20-0x24,0x2E". An empty value yields no ranges.
func ParseAddressRanges(value string) ([]AddressRange, error) {
	var ranges []AddressRange
	if strings.TrimSpace(value) == "" {
		return ranges, nil
	}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		lo, hi, isRange := strings.Cut(item, "-")
		l, err := strconv.ParseUint(strings.TrimSpace(lo), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad address %q: %w", lo, err)
		}
		h := l
		if isRange {
			h, err = strconv.ParseUint(strings.TrimSpace(hi), 0, 8)
			if err != nil {
				return nil, fmt.Errorf("bad address %q: %w", hi, err)
			}
		}
		if h < l {
			return nil, fmt.Errorf("range %q is reversed", item)
		}
		ranges = append(ranges, AddressRange{Lo: byte(l), Hi: byte(h)})
	}
	return ranges, nil
}

// InitGlobal loads the global configuration from file. Only the first call
// has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
