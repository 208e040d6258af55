package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/roman-kulish/attenuator-bench/internal/bench"
	"github.com/roman-kulish/attenuator-bench/internal/discovery"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/lan"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/parallel"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/usbtmc"
	"github.com/roman-kulish/attenuator-bench/internal/results"
)

// NewLogger creates a colourised logger writing to w at the given level
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", level)
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      l,
		TimeFormat: "15:04:05",
	})), nil
}

// NewBench wires discovery, the profile catalog and the result store
// according to config.
func NewBench(config *Config, logger *slog.Logger) (*bench.Bench, error) {
	catalog, err := config.Catalog()
	if err != nil {
		return nil, err
	}

	d := discovery.New(config.Discovery(), discoveryOptions(config, logger)...)
	options := append(config.BenchOptions(), bench.WithLogger(logger))

	return bench.New(d, catalog, results.New(), options...), nil
}

func discoveryOptions(config *Config, logger *slog.Logger) []func(d *discovery.Discoverer) {
	options := []func(d *discovery.Discoverer){
		discovery.WithLogger(logger),
	}

	if config.Devices.Mode != discovery.ModeLive {
		return options
	}

	timeout := config.Devices.Analyzer.Timeout.Duration()
	if len(config.Devices.Analyzer.Resources) > 0 {
		options = append(options, discovery.WithBus(lan.NewBus(config.Devices.Analyzer.Resources, timeout)))
	}
	if config.Devices.Analyzer.USB {
		options = append(options, discovery.WithBus(usbtmc.NewBus(timeout)))
	}

	options = append(options, discovery.WithPorts(parallel.NewSerialPorts(config.Devices.Controller.BaudRate)))

	return options
}
