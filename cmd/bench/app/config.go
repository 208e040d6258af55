package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/attenuator-bench/internal/bench"
	"github.com/roman-kulish/attenuator-bench/internal/discovery"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/lan"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/parallel"
	"github.com/roman-kulish/attenuator-bench/internal/profile"
)

var defaultModels = []string{"E8362B"}

// Duration is a time.Duration read from and written as text such as "200ms"
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("app.Duration: %q is not a duration: %w", text, err)
	}

	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Validate rejects negative durations; zero disables the wait it configures
func (d Duration) Validate() error {
	if d < 0 {
		return fmt.Errorf("app.Duration: must not be negative: %s", d)
	}
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Devices     DevicesConfig     `yaml:"devices"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Profiles    []profile.Profile `yaml:"profiles"` // Replaces the built-in catalog when set
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// DevicesConfig selects how instruments are discovered
type DevicesConfig struct {
	Mode       discovery.Mode   `yaml:"mode"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Controller ControllerConfig `yaml:"controller"`
}

// AnalyzerConfig represents the analyzer search settings
type AnalyzerConfig struct {
	Models    []string `yaml:"models"`    // Known models, matched against the identity
	Resources []string `yaml:"resources"` // LAN addresses, port 5025 is assumed when omitted
	USB       bool     `yaml:"usb"`       // Probe USB-TMC devices
	Timeout   Duration `yaml:"timeout"`   // I/O timeout of a single exchange
}

// ControllerConfig represents the code controller search settings
type ControllerConfig struct {
	BaudRate         int      `yaml:"baudRate"`
	HandshakeTimeout Duration `yaml:"handshakeTimeout"`
	Ports            []string `yaml:"ports"` // Probed in order; host ports are enumerated when empty
}

// MeasurementConfig represents sample check and measurement settings
type MeasurementConfig struct {
	Settle            Duration `yaml:"settle"`            // Wait after a code change, live mode only
	PresenceThreshold *float64 `yaml:"presenceThreshold"` // dB
	CheckPoints       int      `yaml:"checkPoints"`
	CheckProfile      int      `yaml:"checkProfile"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	threshold := bench.DefaultPresenceThreshold

	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo.String()},
		Devices: DevicesConfig{
			Mode: discovery.ModeLive,
			Analyzer: AnalyzerConfig{
				Models:  defaultModels,
				Timeout: Duration(lan.DefaultTimeout),
			},
			Controller: ControllerConfig{
				BaudRate:         parallel.DefaultBaudRate,
				HandshakeTimeout: Duration(parallel.DefaultHandshakeTimeout),
			},
		},
		Measurement: MeasurementConfig{
			Settle:            Duration(bench.DefaultSettle),
			PresenceThreshold: &threshold,
			CheckPoints:       bench.DefaultCheckPoints,
			CheckProfile:      bench.DefaultCheckProfile,
		},
	}
}

// LoadConfig reads the YAML configuration at path over the defaults. An
// empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(config.Devices.Analyzer.Models) == 0 {
		config.Devices.Analyzer.Models = defaultModels
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return fmt.Errorf("app.Config: invalid log level '%s'", c.Settings.LogLevel)
	}

	dc := c.Discovery()
	if err := dc.Validate(); err != nil {
		return err
	}

	if c.Devices.Controller.BaudRate < 0 {
		return fmt.Errorf("app.Config: baud rate must not be negative: %d", c.Devices.Controller.BaudRate)
	}

	for _, d := range []Duration{c.Devices.Analyzer.Timeout, c.Measurement.Settle} {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}
	}

	if c.Measurement.CheckPoints < 2 {
		return fmt.Errorf("app.Config: check points must be at least 2: %d given", c.Measurement.CheckPoints)
	}

	catalog, err := c.Catalog()
	if err != nil {
		return err
	}

	if _, err = catalog.Lookup(c.Measurement.CheckProfile); err != nil {
		return fmt.Errorf("app.Config: check profile: %w", err)
	}

	return nil
}

// Discovery returns the discovery configuration
func (c *Config) Discovery() discovery.Config {
	return discovery.Config{
		Mode:             c.Devices.Mode,
		Models:           c.Devices.Analyzer.Models,
		Ports:            c.Devices.Controller.Ports,
		HandshakeTimeout: c.Devices.Controller.HandshakeTimeout.Duration(),
	}
}

// Catalog returns the configured profiles, or the built-in ones
func (c *Config) Catalog() (*profile.Catalog, error) {
	if len(c.Profiles) == 0 {
		return profile.DefaultCatalog(), nil
	}

	catalog, err := profile.NewCatalog(c.Profiles...)
	if err != nil {
		return nil, errors.Join(errors.New("app.Config: invalid profiles"), err)
	}
	return catalog, nil
}

// BenchOptions returns the bench options derived from the measurement settings
func (c *Config) BenchOptions() []func(b *bench.Bench) {
	options := []func(b *bench.Bench){
		bench.WithSettle(c.Measurement.Settle.Duration()),
		bench.WithCheckPoints(c.Measurement.CheckPoints),
		bench.WithCheckProfile(c.Measurement.CheckProfile),
	}

	if c.Measurement.PresenceThreshold != nil {
		options = append(options, bench.WithPresenceThreshold(*c.Measurement.PresenceThreshold))
	}

	return options
}
