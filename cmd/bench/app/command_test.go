package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/attenuator-bench/internal/instrument/mock"
	"github.com/roman-kulish/attenuator-bench/internal/profile"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCommand_Discover(t *testing.T) {
	out, err := execute(t, "discover", "--mock", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, mock.AnalyzerIdentity)
	assert.Contains(t, out, mock.ControllerIdentity)
}

func TestCommand_Check(t *testing.T) {
	out, err := execute(t, "check", "--mock", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "sample present\n", out)
}

func TestCommand_Measure(t *testing.T) {
	out, err := execute(t, "measure", "--mock", "--check", "--profile", "1", "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 11) // profile, blank, header, 8 codes

	assert.Contains(t, lines[0], "1324PM2")
	assert.Contains(t, lines[2], "nominal, dB")
	assert.Contains(t, lines[3], "15.75")
	assert.Contains(t, lines[3], "111111")
	assert.Contains(t, lines[10], "000000")
}

func TestCommand_MeasureUnknownProfile(t *testing.T) {
	_, err := execute(t, "measure", "--mock", "--profile", "5", "--log-level", "error")
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
}

func TestCommand_InstrumentsNotFound(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: error
devices:
  mode: live
  controller:
    handshakeTimeout: 50ms
    ports: [/nonexistent/tty0]
`)

	_, err := execute(t, "discover", "-c", path)
	assert.ErrorIs(t, err, ErrInstrumentsNotFound)
}
