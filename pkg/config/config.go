package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/vehiclemon/pkg/channel"
)

// Config represents the application configuration.
type Config struct {
	Display     DisplayConfig     `yaml:"display"`
	ADC         ADCConfig         `yaml:"adc"`
	Sampling    SamplingConfig    `yaml:"sampling"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Alarm       AlarmConfig       `yaml:"alarm"`
	Log         LogConfig         `yaml:"log"`
	Mock        MockConfig        `yaml:"mock"`
}

// DisplayConfig contains the touchscreen serial link configuration.
type DisplayConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // Time to wait for the display ACK
	EventBuffer  int           `yaml:"event_buffer"`
}

// ADCConfig contains the converter board configuration.
type ADCConfig struct {
	Bus         string        `yaml:"bus"`          // I2C bus name, "1" on current Raspberry Pi boards
	Addresses   []uint16      `yaml:"addresses"`    // Chip addresses, channels 1-4 then 5-8
	InputScale  float64       `yaml:"input_scale"`  // Input divider ratio applied to every reading
	ReadTimeout time.Duration `yaml:"read_timeout"` // Upper bound for one channel conversion
	PollPeriod  time.Duration `yaml:"poll_period"`  // Delay between ready-bit polls
}

// SamplingConfig contains sampling loop parameters.
type SamplingConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Buffer     int           `yaml:"buffer"`      // Ticks queued for the controller before dropping
	StaleAfter int           `yaml:"stale_after"` // Consecutive misses before alarms on a channel are suspended
	Average    int           `yaml:"average"`     // Moving average window (0 = disabled, default)
	Priority   int           `yaml:"priority"`    // Nice value for the sampling thread (0 = unchanged)
}

// CalibrationConfig contains the calibration file location and converter input span.
type CalibrationConfig struct {
	File  string             `yaml:"file"`
	Input channel.InputRange `yaml:"input"`
}

// AlarmConfig contains alarm behavior and outputs.
type AlarmConfig struct {
	RestoreOnAnyClear bool          `yaml:"restore_on_any_clear"`
	BuzzerPin         int           `yaml:"buzzer_pin"` // BCM pin number, 0 disables the buzzer
	BeepDuration      time.Duration `yaml:"beep_duration"`
	Journal           string        `yaml:"journal"` // SQLite file, empty disables the journal
}

// LogConfig contains logging parameters.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// MockConfig contains mock voltage source configuration.
type MockConfig struct {
	Levels       []float64     `yaml:"levels"`        // Base raw voltage per channel (V)
	Ripple       float64       `yaml:"ripple"`        // Sine ripple amplitude (V)
	NoiseLevel   float64       `yaml:"noise_level"`   // Noise level (V)
	FaultChannel int           `yaml:"fault_channel"` // Channel index that drifts, -1 disables
	FaultAfter   time.Duration `yaml:"fault_after"`   // Time before the fault starts
	FaultVoltage float64       `yaml:"fault_voltage"` // Raw voltage the faulty channel drifts to
	ErrorEvery   int           `yaml:"error_every"`   // Fail every Nth read (0 = never)
	Latency      time.Duration `yaml:"latency"`       // Simulated conversion time
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Port:         "/dev/ttyAMA0",
			BaudRate:     115200,
			WriteTimeout: 100 * time.Millisecond,
			EventBuffer:  32,
		},
		ADC: ADCConfig{
			Bus:         "1",
			Addresses:   []uint16{0x68, 0x69},
			InputScale:  1.0,
			ReadTimeout: 500 * time.Millisecond,
			PollPeriod:  5 * time.Millisecond,
		},
		Sampling: SamplingConfig{
			Interval:   250 * time.Millisecond,
			Buffer:     4,
			StaleAfter: 5,
			Average:    0, // No averaging by default
			Priority:   -10,
		},
		Calibration: CalibrationConfig{
			File:  "calibration.txt",
			Input: channel.DefaultInputRange,
		},
		Alarm: AlarmConfig{
			RestoreOnAnyClear: false,
			BuzzerPin:         0,
			BeepDuration:      120 * time.Millisecond,
			Journal:           "alarms.db",
		},
		Log: LogConfig{
			File:  "vehiclemon.log",
			Level: "info",
		},
		Mock: MockConfig{
			Levels:       []float64{4.7, 4.2, 2.5, 1.2, 0.5, 0.5, 0.5, 0.5},
			Ripple:       0.05,
			NoiseLevel:   0.005,
			FaultChannel: -1,
			FaultAfter:   30 * time.Second,
			FaultVoltage: 0.1,
			ErrorEvery:   0,
			Latency:      2 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Display.Port == "" {
		c.Display.Port = def.Display.Port
	}
	if c.Display.BaudRate == 0 {
		c.Display.BaudRate = def.Display.BaudRate
	}
	if c.Display.WriteTimeout == 0 {
		c.Display.WriteTimeout = def.Display.WriteTimeout
	}
	if c.Display.EventBuffer <= 0 {
		c.Display.EventBuffer = def.Display.EventBuffer
	}

	if c.ADC.Bus == "" {
		c.ADC.Bus = def.ADC.Bus
	}
	if len(c.ADC.Addresses) != 2 {
		c.ADC.Addresses = def.ADC.Addresses
	}
	if c.ADC.InputScale == 0 {
		c.ADC.InputScale = def.ADC.InputScale
	}
	if c.ADC.ReadTimeout == 0 {
		c.ADC.ReadTimeout = def.ADC.ReadTimeout
	}
	if c.ADC.PollPeriod == 0 {
		c.ADC.PollPeriod = def.ADC.PollPeriod
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = def.Sampling.Interval
	}
	if c.Sampling.Buffer <= 0 {
		c.Sampling.Buffer = def.Sampling.Buffer
	}

	if c.Calibration.File == "" {
		c.Calibration.File = def.Calibration.File
	}
	if c.Calibration.Input.Max == c.Calibration.Input.Min {
		c.Calibration.Input = def.Calibration.Input
	}

	if c.Alarm.BeepDuration == 0 {
		c.Alarm.BeepDuration = def.Alarm.BeepDuration
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if len(c.Mock.Levels) == 0 {
		c.Mock.Levels = def.Mock.Levels
	}
	if c.Mock.FaultAfter == 0 {
		c.Mock.FaultAfter = def.Mock.FaultAfter
	}
}
