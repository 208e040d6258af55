package mock

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
)

const (
	AnalyzerIdentity   = "Agilent,E8362B mock,sn,firmware"
	ControllerIdentity = "ARDUINO mock@COM4"
)

// Ramp returns the payload "1,2,...,n"
func Ramp(n int) string {
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(values, ",")
}

// Constant returns a payload of n copies of v
func Constant(n int, v float64) string {
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(values, ",")
}

// WithPayload sets the reply to every trace data query
func WithPayload(payload string) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.payload = payload
	}
}

// WithFailure makes every command containing match fail with err
func WithFailure(match string, err error) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.failOn = match
		a.failErr = err
	}
}

// Analyzer accepts every command and answers queries deterministically:
// identity for `*IDN?`, the completion marker for `*OPC?`, and the configured
// payload for data queries regardless of the selected trace.
type Analyzer struct {
	payload string
	failOn  string
	failErr error

	mu       sync.Mutex
	commands []string
}

// NewAnalyzer creates an analyzer answering with a 51 point ramp by default
func NewAnalyzer(options ...func(a *Analyzer)) *Analyzer {
	a := Analyzer{payload: Ramp(51)}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Identity returns AnalyzerIdentity
func (a *Analyzer) Identity() string {
	return AnalyzerIdentity
}

// Send records command
func (a *Analyzer) Send(_ context.Context, command string) error {
	return a.record(command)
}

// Query records command and returns the canned answer for it
func (a *Analyzer) Query(_ context.Context, command string) (string, error) {
	if err := a.record(command); err != nil {
		return "", err
	}

	switch {
	case strings.Contains(command, "*IDN?"):
		return AnalyzerIdentity, nil
	case strings.Contains(command, "*OPC?"):
		return "1", nil
	case strings.Contains(command, "DATA?"):
		return a.payload, nil
	default:
		return "", nil
	}
}

// Commands returns every command received so far
func (a *Analyzer) Commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.commands...)
}

func (a *Analyzer) record(command string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.commands = append(a.commands, command)
	if a.failErr != nil && strings.Contains(command, a.failOn) {
		return instrument.NewCommunicationError(AnalyzerIdentity, command, a.failErr)
	}
	return nil
}

// Controller accepts any code silently and remembers the order applied
type Controller struct {
	mu    sync.Mutex
	codes []uint8
}

// NewController creates a controller with no code applied
func NewController() *Controller {
	return &Controller{}
}

// Identity returns ControllerIdentity
func (c *Controller) Identity() string {
	return ControllerIdentity
}

// SetCode records code
func (c *Controller) SetCode(_ context.Context, code uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.codes = append(c.codes, code)
	return nil
}

// Codes returns every code applied so far
func (c *Controller) Codes() []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint8(nil), c.codes...)
}
