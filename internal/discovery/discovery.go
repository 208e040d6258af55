package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/mock"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/parallel"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
)

const (
	// ModeLive probes real transports
	ModeLive Mode = "live"

	// ModeMock installs deterministic stand-ins
	ModeMock Mode = "mock"
)

var (
	ErrAnalyzerNotFound   = errors.New("analyzer not found")
	ErrControllerNotFound = errors.New("controller not found")
)

// Mode selects how instruments are bound
type Mode string

func (m Mode) String() string {
	return string(m)
}

// Config is the discovery configuration
type Config struct {
	Mode             Mode
	Models           []string      // Known analyzer models, matched as substrings of the identity model field
	Ports            []string      // Candidate serial ports; empty means enumerate the host ports
	HandshakeTimeout time.Duration // Bound on the wait for a controller handshake reply
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLive:
		if len(c.Models) == 0 {
			return errors.New("discovery.Config: no known analyzer models")
		}
	case ModeMock:
	default:
		return fmt.Errorf("discovery.Config: unknown mode '%s'", c.Mode)
	}

	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("discovery.Config: handshake timeout must not be negative: %s", c.HandshakeTimeout)
	}
	return nil
}

// PortProvider lists and opens serial ports
type PortProvider interface {
	Ports() ([]string, error)
	Open(name string) (parallel.Port, error)
}

// Bound holds the instruments accepted by discovery
type Bound struct {
	Analyzer   instrument.Analyzer
	Controller instrument.Controller
}

// Close releases the transports held by the bound instruments
func (b *Bound) Close() error {
	return errors.Join(instrument.Close(b.Analyzer), instrument.Close(b.Controller))
}

// WithLogger sets the logger for discovery
func WithLogger(logger *slog.Logger) func(d *Discoverer) {
	return func(d *Discoverer) {
		d.logger = logger.With(slog.String("component", "discovery"), slog.String("mode", d.config.Mode.String()))
	}
}

// WithBus adds an instrument bus probed for analyzers in live mode
func WithBus(bus scpi.Bus) func(d *Discoverer) {
	return func(d *Discoverer) {
		d.buses = append(d.buses, bus)
	}
}

// WithPorts sets the serial port provider probed for controllers in live mode
func WithPorts(ports PortProvider) func(d *Discoverer) {
	return func(d *Discoverer) {
		d.ports = ports
	}
}

// WithMocks sets the instruments installed in mock mode
func WithMocks(analyzer instrument.Analyzer, controller instrument.Controller) func(d *Discoverer) {
	return func(d *Discoverer) {
		d.mockAnalyzer = analyzer
		d.mockController = controller
	}
}

// Discoverer binds an analyzer and a controller
type Discoverer struct {
	config Config
	buses  []scpi.Bus
	ports  PortProvider

	mockAnalyzer   instrument.Analyzer
	mockController instrument.Controller

	logger *slog.Logger
}

// New creates a Discoverer with a discard logger
func New(config Config, options ...func(d *Discoverer)) *Discoverer {
	d := Discoverer{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Mode returns the configured discovery mode
func (d *Discoverer) Mode() Mode {
	return d.config.Mode
}

// Discover binds both instruments. In mock mode the stand-ins are installed
// unconditionally. In live mode the first acceptable candidate of each kind
// wins; a failing candidate is logged and probing continues with the next.
// Nothing is bound unless both instruments are found.
func (d *Discoverer) Discover(ctx context.Context) (*Bound, error) {
	if err := d.config.Validate(); err != nil {
		return nil, err
	}

	if d.config.Mode == ModeMock {
		return d.installMocks(), nil
	}

	analyzer, analyzerErr := d.findAnalyzer(ctx)
	if err := ctx.Err(); err != nil {
		_ = instrument.Close(analyzer)
		return nil, err
	}

	controller, controllerErr := d.findController(ctx)

	if err := errors.Join(analyzerErr, controllerErr); err != nil {
		_ = instrument.Close(analyzer)
		_ = instrument.Close(controller)
		return nil, err
	}

	d.logger.Info("instruments found",
		slog.String("analyzer", analyzer.Identity()),
		slog.String("controller", controller.Identity()))

	return &Bound{Analyzer: analyzer, Controller: controller}, nil
}

func (d *Discoverer) installMocks() *Bound {
	b := Bound{Analyzer: d.mockAnalyzer, Controller: d.mockController}
	if b.Analyzer == nil {
		b.Analyzer = mock.NewAnalyzer()
	}
	if b.Controller == nil {
		b.Controller = mock.NewController()
	}

	d.logger.Info("mock instruments installed",
		slog.String("analyzer", b.Analyzer.Identity()),
		slog.String("controller", b.Controller.Identity()))

	return &b
}

// findAnalyzer queries the identity of every resource on every bus and
// accepts the first known model.
func (d *Discoverer) findAnalyzer(ctx context.Context) (instrument.Analyzer, error) {
	for _, bus := range d.buses {
		resources, err := bus.Resources(ctx)
		if err != nil {
			d.logger.Warn(fmt.Sprintf("enumerating resources: %s", err.Error()), slog.String("bus", bus.Name()))
		}

		d.logger.Info("available resources", slog.String("bus", bus.Name()), slog.Int("count", len(resources)))

		for _, resource := range resources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if analyzer := d.probeAnalyzer(ctx, resource); analyzer != nil {
				return analyzer, nil
			}
		}
	}

	d.logger.Error(ErrAnalyzerNotFound.Error(), slog.Any("models", d.config.Models))
	return nil, ErrAnalyzerNotFound
}

func (d *Discoverer) probeAnalyzer(ctx context.Context, resource scpi.Resource) instrument.Analyzer {
	logger := d.logger.With(slog.String("resource", resource.Address()))
	logger.Debug("trying resource")

	transport, err := resource.Open(ctx)
	if err != nil {
		logger.Warn(fmt.Sprintf("opening resource: %s", err.Error()))
		return nil
	}

	analyzer := scpi.NewAnalyzer(resource.Address(), transport, scpi.WithLogger(d.logger))
	id, err := analyzer.Identify(ctx)
	if err != nil {
		logger.Warn(fmt.Sprintf("querying identity: %s", err.Error()))
		_ = analyzer.Close()
		return nil
	}

	if !id.MatchesModel(d.config.Models) {
		logger.Info("not a known analyzer", slog.String("identity", id.String()))
		_ = analyzer.Close()
		return nil
	}

	logger.Info("analyzer found", slog.String("model", id.Model), slog.String("serial", id.Serial))
	return analyzer
}

// findController performs the handshake on every candidate serial port and
// accepts the first one answering with the marker.
func (d *Discoverer) findController(ctx context.Context) (instrument.Controller, error) {
	if d.ports == nil {
		d.logger.Error("no serial port provider configured")
		return nil, ErrControllerNotFound
	}

	names := d.config.Ports
	if len(names) == 0 {
		var err error
		if names, err = d.ports.Ports(); err != nil {
			d.logger.Error(err.Error())
			return nil, fmt.Errorf("%w: %w", ErrControllerNotFound, err)
		}
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger := d.logger.With(slog.String("port", name))

		port, err := d.ports.Open(name)
		if err != nil {
			logger.Debug(fmt.Sprintf("skipping port: %s", err.Error()))
			continue
		}

		identity, err := parallel.Handshake(ctx, port, d.config.HandshakeTimeout)
		if err != nil {
			logger.Warn(err.Error())
			_ = port.Close()
			continue
		}

		logger.Info("controller found", slog.String("identity", identity))
		return parallel.NewController(name, identity, port, parallel.WithLogger(d.logger)), nil
	}

	d.logger.Error(ErrControllerNotFound.Error(), slog.Int("candidates", len(names)))
	return nil, ErrControllerNotFound
}
