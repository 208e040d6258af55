package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/attenuator-bench/internal/discovery"
	"github.com/roman-kulish/attenuator-bench/internal/profile"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, discovery.ModeLive, config.Devices.Mode)
	assert.Equal(t, []string{"E8362B"}, config.Devices.Analyzer.Models)
	assert.Equal(t, 115200, config.Devices.Controller.BaudRate)
	assert.Equal(t, 2*time.Second, config.Devices.Controller.HandshakeTimeout.Duration())
	assert.Equal(t, 200*time.Millisecond, config.Measurement.Settle.Duration())
	require.NotNil(t, config.Measurement.PresenceThreshold)
	assert.Equal(t, -15.0, *config.Measurement.PresenceThreshold)
	assert.Equal(t, 51, config.Measurement.CheckPoints)
	assert.NoError(t, config.Validate())

	catalog, err := config.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, catalog.IDs())
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
devices:
  mode: mock
  analyzer:
    resources: ["192.168.1.20", "pna.lab:5025"]
    usb: true
    timeout: 10s
  controller:
    baudRate: 9600
    handshakeTimeout: 500ms
    ports: [/dev/ttyACM0]
measurement:
  settle: 1s
  presenceThreshold: -20.5
  checkPoints: 101
  checkProfile: 3
profiles:
  - id: 3
    name: custom
    startFreq: 100000000
    stopFreq: 2000000000
    sourcePower: -10
    pointCount: 401
    levels:
      - {attenuation: 0, code: 0}
      - {attenuation: 10, code: 5}
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Settings.LogLevel)
	assert.Equal(t, discovery.ModeMock, config.Devices.Mode)
	assert.Equal(t, []string{"E8362B"}, config.Devices.Analyzer.Models)
	assert.Equal(t, []string{"192.168.1.20", "pna.lab:5025"}, config.Devices.Analyzer.Resources)
	assert.True(t, config.Devices.Analyzer.USB)
	assert.Equal(t, 10*time.Second, config.Devices.Analyzer.Timeout.Duration())
	assert.Equal(t, 9600, config.Devices.Controller.BaudRate)
	assert.Equal(t, 500*time.Millisecond, config.Devices.Controller.HandshakeTimeout.Duration())
	assert.Equal(t, time.Second, config.Measurement.Settle.Duration())
	assert.Equal(t, -20.5, *config.Measurement.PresenceThreshold)
	assert.Equal(t, 101, config.Measurement.CheckPoints)

	d := config.Discovery()
	assert.Equal(t, []string{"/dev/ttyACM0"}, d.Ports)
	assert.Equal(t, 500*time.Millisecond, d.HandshakeTimeout)

	catalog, err := config.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, catalog.IDs())

	p, err := catalog.Lookup(3)
	require.NoError(t, err)
	assert.Equal(t, profile.Table{{Attenuation: 0, Code: 0}, {Attenuation: 10, Code: 5}}, p.Levels)

	assert.Len(t, config.BenchOptions(), 4)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown mode", content: "devices:\n  mode: simulated\n"},
		{name: "log level", content: "settings:\n  logLevel: loud\n"},
		{name: "duration", content: "measurement:\n  settle: soon\n"},
		{name: "negative settle", content: "measurement:\n  settle: -1s\n"},
		{name: "check points", content: "measurement:\n  checkPoints: 1\n"},
		{name: "check profile", content: "measurement:\n  checkProfile: 9\n"},
		{name: "profile", content: "profiles:\n  - id: 0\n    startFreq: 10\n    stopFreq: 5\n    pointCount: 11\n"},
		{name: "syntax", content: "devices: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration_Text(t *testing.T) {
	var v struct {
		Settle Duration `yaml:"settle" json:"settle"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("settle: 250ms\n"), &v))
	assert.Equal(t, 250*time.Millisecond, v.Settle.Duration())

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "settle: 250ms\n", string(out))

	out, err = json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"settle":"250ms"}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"settle":"1m30s"}`), &v))
	assert.Equal(t, 90*time.Second, v.Settle.Duration())

	assert.Error(t, yaml.Unmarshal([]byte("settle: 10\n"), &v))
	assert.Error(t, Duration(-time.Second).Validate())
	assert.NoError(t, Duration(0).Validate())
}
