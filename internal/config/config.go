// Package config holds the recorder's settings and their YAML form.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/bounce-recorder/internal/capture"
	"github.com/sweeney/bounce-recorder/internal/gpio"
	"github.com/sweeney/bounce-recorder/internal/serialport"
)

// MaxSamples bounds the per-burst edge log.
const MaxSamples = 65535

// Config represents the daemon configuration.
type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	Capture CaptureConfig `yaml:"capture"`
	Serial  SerialConfig  `yaml:"serial"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// GPIOConfig selects the monitored line and the status LED.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	Pin       int    `yaml:"pin"`
	Pull      string `yaml:"pull"`
	ActiveLow bool   `yaml:"active_low"`
	LED       int    `yaml:"led"` // -1 disables the LED
}

// CaptureConfig contains the burst detection parameters.
type CaptureConfig struct {
	Samples int           `yaml:"samples"`
	Settle  time.Duration `yaml:"settle"`
	Poll    time.Duration `yaml:"poll"`
}

// SerialConfig selects the report sink. An empty port writes to stdout.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Topic     string        `yaml:"topic"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with sensible values.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip: gpio.DefaultChip,
			Pin:  gpio.DefaultPin,
			Pull: string(gpio.PullNone),
			LED:  gpio.DefaultLED,
		},
		Capture: CaptureConfig{
			Samples: capture.DefaultCapacity,
			Settle:  capture.DefaultSettle * time.Microsecond,
			Poll:    time.Millisecond,
		},
		Serial: SerialConfig{
			Baud: serialport.DefaultBaudRate,
		},
		MQTT: MQTTConfig{
			Topic:     "bouncer",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip is required"))
	}
	if c.GPIO.Pin < 0 {
		errs = append(errs, fmt.Errorf("gpio.pin must not be negative, got %d", c.GPIO.Pin))
	}
	if c.GPIO.LED >= 0 && c.GPIO.LED == c.GPIO.Pin {
		errs = append(errs, fmt.Errorf("gpio.led and gpio.pin are both %d", c.GPIO.Pin))
	}
	if _, err := gpio.ParsePull(c.GPIO.Pull); err != nil {
		errs = append(errs, err)
	}
	if c.Capture.Samples <= 0 || c.Capture.Samples > MaxSamples {
		errs = append(errs, fmt.Errorf("capture.samples must be in 1..%d, got %d", MaxSamples, c.Capture.Samples))
	}
	if c.Capture.Settle < time.Microsecond {
		errs = append(errs, fmt.Errorf("capture.settle must be at least 1us, got %v", c.Capture.Settle))
	}
	if c.Capture.Poll <= 0 {
		errs = append(errs, fmt.Errorf("capture.poll must be positive, got %v", c.Capture.Poll))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic is required when a broker is set"))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat must not be negative, got %v", c.MQTT.Heartbeat))
	}
	return errors.Join(errs...)
}

// SettleMicros returns the settle time in microseconds.
func (c *Config) SettleMicros() uint64 {
	return uint64(c.Capture.Settle / time.Microsecond)
}
