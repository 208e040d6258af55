package lan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
)

const (
	// DefaultPort is the SCPI raw socket port
	DefaultPort = "5025"

	DefaultTimeout = 5 * time.Second

	maxMessageSize = 1 << 20
)

// Socket is a scpi.Transport over a raw TCP socket. Replies are terminated
// by a newline.
type Socket struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial connects to the instrument at address ("host" or "host:port").
func Dial(ctx context.Context, address string, timeout time.Duration) (*Socket, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", withPort(address))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}

	return &Socket{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, 64*1024),
		timeout: timeout,
	}, nil
}

// Write sends a complete message
func (s *Socket) Write(ctx context.Context, msg []byte) error {
	if err := s.conn.SetWriteDeadline(s.deadline(ctx)); err != nil {
		return err
	}

	_, err := s.conn.Write(msg)
	return err
}

// ReadMessage reads up to and including the message terminator
func (s *Socket) ReadMessage(ctx context.Context) ([]byte, error) {
	if err := s.conn.SetReadDeadline(s.deadline(ctx)); err != nil {
		return nil, err
	}

	var msg []byte
	for {
		chunk, err := s.reader.ReadSlice('\n')
		msg = append(msg, chunk...)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		if len(msg) > maxMessageSize {
			return nil, fmt.Errorf("message exceeds %d bytes", maxMessageSize)
		}
	}
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

// deadline picks the earlier of the context deadline and the I/O timeout
func (s *Socket) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

func withPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(strings.Trim(address, "[]"), DefaultPort)
}

// resource is a configured LAN instrument address
type resource struct {
	address string
	timeout time.Duration
}

func (r resource) Address() string {
	return "TCPIP::" + withPort(r.address)
}

func (r resource) Open(ctx context.Context) (scpi.Transport, error) {
	return Dial(ctx, r.address, r.timeout)
}

// Bus lists a fixed set of LAN instrument addresses.
type Bus struct {
	addresses []string
	timeout   time.Duration
}

// NewBus creates a bus over the given addresses
func NewBus(addresses []string, timeout time.Duration) *Bus {
	return &Bus{addresses: addresses, timeout: timeout}
}

func (b *Bus) Name() string {
	return "lan"
}

func (b *Bus) Resources(context.Context) ([]scpi.Resource, error) {
	resources := make([]scpi.Resource, 0, len(b.addresses))
	for _, address := range b.addresses {
		resources = append(resources, resource{address: address, timeout: b.timeout})
	}
	return resources, nil
}
