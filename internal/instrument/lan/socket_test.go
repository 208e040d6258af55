package lan

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
)

// serveIdentity answers every line received with a fixed identity
func serveIdentity(t *testing.T, ln net.Listener, reply string) {
	t.Helper()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if scanner.Text() == "*IDN?" {
				_, _ = conn.Write([]byte(reply + "\n"))
			}
		}
	}()
}

func TestSocket_IdentifyOverLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serveIdentity(t, ln, "Agilent Technologies,E8362B,MY1,A.07")

	bus := NewBus([]string{ln.Addr().String()}, time.Second)
	resources, err := bus.Resources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "TCPIP::"+ln.Addr().String(), resources[0].Address())

	tr, err := resources[0].Open(context.Background())
	require.NoError(t, err)

	a := scpi.NewAnalyzer(resources[0].Address(), tr)
	defer a.Close()

	id, err := a.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "E8362B", id.Model)
}

func TestSocket_ReadTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(500 * time.Millisecond)
	}()

	s, err := Dial(context.Background(), ln.Addr().String(), 50*time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadMessage(context.Background())
	assert.Error(t, err)
}

func TestWithPort(t *testing.T) {
	assert.Equal(t, "10.0.0.5:5025", withPort("10.0.0.5"))
	assert.Equal(t, "10.0.0.5:1234", withPort("10.0.0.5:1234"))
	assert.Equal(t, "[::1]:5025", withPort("::1"))
}
