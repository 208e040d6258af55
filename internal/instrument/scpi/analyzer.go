package scpi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
)

const (
	// IdentityQuery is the IEEE 488.2 identification query
	IdentityQuery = "*IDN?"

	terminator = "\n"
)

// Transport moves complete SCPI messages to and from an instrument.
type Transport interface {
	// Write sends a complete message, terminator included.
	Write(ctx context.Context, msg []byte) error

	// ReadMessage blocks until a complete reply message is received.
	ReadMessage(ctx context.Context) ([]byte, error)

	Close() error
}

// WithLogger sets the logger for the analyzer
func WithLogger(logger *slog.Logger) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.logger = logger.With(slog.String("analyzer", a.address))
	}
}

// Analyzer is an instrument.Analyzer speaking SCPI over a Transport.
type Analyzer struct {
	address   string
	identity  string
	transport Transport

	mu     sync.Mutex
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer for the instrument reachable through t.
// The identity is unknown until Identify is called.
func NewAnalyzer(address string, t Transport, options ...func(a *Analyzer)) *Analyzer {
	a := Analyzer{
		address:   address,
		transport: t,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Identify queries the instrument identity and remembers it.
func (a *Analyzer) Identify(ctx context.Context) (instrument.Identity, error) {
	idn, err := a.Query(ctx, IdentityQuery)
	if err != nil {
		return instrument.Identity{}, err
	}

	id, err := instrument.ParseIdentity(idn)
	if err != nil {
		return instrument.Identity{}, err
	}

	a.mu.Lock()
	a.identity = strings.TrimSpace(idn)
	a.mu.Unlock()

	return id, nil
}

// Identity returns the identity reported by the last Identify call, or the
// address if the instrument has not been identified.
func (a *Analyzer) Identity() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity == "" {
		return a.address
	}
	return a.identity
}

// Address returns the resource address of the instrument
func (a *Analyzer) Address() string {
	return a.address
}

// Send writes a single command
func (a *Analyzer) Send(ctx context.Context, command string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.write(ctx, command)
}

// Query writes a command and reads its reply
func (a *Analyzer) Query(ctx context.Context, command string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.write(ctx, command); err != nil {
		return "", err
	}

	reply, err := a.transport.ReadMessage(ctx)
	if err != nil {
		return "", instrument.NewCommunicationError(a.address, command, fmt.Errorf("reading reply: %w", err))
	}

	a.logger.Debug("reply received", slog.String("command", command), slog.Int("bytes", len(reply)))
	return strings.TrimSpace(string(reply)), nil
}

// Close releases the transport
func (a *Analyzer) Close() error {
	return a.transport.Close()
}

func (a *Analyzer) write(ctx context.Context, command string) error {
	a.logger.Debug("sending command", slog.String("command", command))

	if err := a.transport.Write(ctx, []byte(command+terminator)); err != nil {
		return instrument.NewCommunicationError(a.address, command, fmt.Errorf("writing command: %w", err))
	}
	return nil
}
