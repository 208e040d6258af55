package parallel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
)

const (
	// DefaultHandshakeTimeout bounds the wait for a handshake reply
	DefaultHandshakeTimeout = 2 * time.Second

	// pollInterval is the read timeout used while waiting for pending bytes
	pollInterval = 20 * time.Millisecond

	// maxReply caps the bytes drained from a port that keeps sending
	maxReply = 256
)

var (
	// HandshakeRequest asks the controller firmware for its name
	HandshakeRequest = []byte("#NAME\n")

	// HandshakeMarker must be present in the reply of a code controller
	HandshakeMarker = []byte("ARDUINO")

	// ErrHandshake is returned when a port answers without the marker
	ErrHandshake = errors.New("handshake failed")

	// ErrHandshakeTimeout is returned when a port does not answer in time
	ErrHandshakeTimeout = errors.New("handshake timed out")
)

// Port is the subset of a serial port used by the controller
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Handshake writes the handshake request to port and waits, at most timeout,
// for a reply. All pending bytes are read once the first ones arrive; the
// port is accepted only if the reply contains HandshakeMarker.
func Handshake(ctx context.Context, port Port, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	if _, err := port.Write(HandshakeRequest); err != nil {
		return "", fmt.Errorf("writing handshake: %w", err)
	}

	if err := port.SetReadTimeout(pollInterval); err != nil {
		return "", fmt.Errorf("setting read timeout: %w", err)
	}

	reply, err := waitPending(ctx, port, timeout)
	if err != nil {
		return "", err
	}

	reply = bytes.TrimSpace(reply)
	if !bytes.Contains(reply, HandshakeMarker) {
		return "", fmt.Errorf("%w: unexpected reply %q", ErrHandshake, reply)
	}

	return string(reply), nil
}

// waitPending polls until bytes are available, then drains what the port has
// buffered. Draining stops at the deadline or after maxReply bytes, so a port
// that streams data cannot hold the handshake.
func waitPending(ctx context.Context, port Port, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, maxReply)

	var reply []byte
	for len(reply) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrHandshakeTimeout, timeout)
		}

		n, err := port.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading handshake: %w", err)
		}
		reply = append(reply, buf[:n]...)
	}

	for len(reply) < maxReply && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := port.Read(buf[:maxReply-len(reply)])
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading handshake: %w", err)
		}
		if n == 0 {
			break
		}
		reply = append(reply, buf[:n]...)
	}

	return reply, nil
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("controller", c.portName))
	}
}

// Controller is an instrument.Controller driving the parallel outputs of a
// microcontroller attached to a serial port.
type Controller struct {
	portName string
	identity string
	port     Port

	mu     sync.Mutex
	logger *slog.Logger
}

// NewController creates a controller on an already handshaken port
func NewController(portName, identity string, port Port, options ...func(c *Controller)) *Controller {
	c := Controller{
		portName: portName,
		identity: identity,
		port:     port,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Identity returns the handshake reply and the port name
func (c *Controller) Identity() string {
	return fmt.Sprintf("%s@%s", c.identity, c.portName)
}

// SetCode drives the parallel outputs to code
func (c *Controller) SetCode(ctx context.Context, code uint8) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := EncodeCode(code)
	c.logger.Debug("setting code", slog.String("code", fmt.Sprintf("%06b", code)))

	if _, err := c.port.Write(cmd); err != nil {
		return instrument.NewCommunicationError(c.Identity(), "set code", err)
	}
	return nil
}

func (c *Controller) Close() error {
	return c.port.Close()
}

// EncodeCode returns the wire command selecting code
func EncodeCode(code uint8) []byte {
	return []byte(fmt.Sprintf("#CODE %d\n", code))
}
