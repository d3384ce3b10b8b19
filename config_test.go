package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotside-studios/nfc-handoff-agent/server"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(envLookup(map[string]string{
		EnvAddress:     "11:22:33:44:55:66",
		EnvAddressPipe: "/tmp/bt_addr",
	}))
	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", cfg.Address)
	assert.Equal(t, "/tmp/bt_addr", cfg.AddressPipe)
	assert.Equal(t, server.DefaultPort, cfg.Port)
	assert.Empty(t, cfg.Device)
	assert.Empty(t, cfg.Mode)
	assert.True(t, cfg.PipeEnabled())
	assert.False(t, cfg.MDNS)

	cfg, err = LoadConfig(envLookup(map[string]string{
		EnvAddress:   "11:22:33:44:55:66",
		EnvRelayPipe: "OFF",
		EnvDevice:    "pn532_uart:/dev/ttyUSB0",
		EnvMode:      "tag",
		EnvPort:      "0",
		EnvMDNS:      "true",
	}))
	require.NoError(t, err)
	assert.False(t, cfg.PipeEnabled())
	assert.Equal(t, "pn532_uart:/dev/ttyUSB0", cfg.Device)
	assert.Equal(t, "tag", cfg.Mode)
	assert.Zero(t, cfg.Port)
	assert.True(t, cfg.MDNS)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{"nothing set", map[string]string{}, "missing required configuration: BT_ADDR, BT_ADDR_PIPE"},
		{"blank values", map[string]string{EnvAddress: "  ", EnvAddressPipe: ""}, "BT_ADDR, BT_ADDR_PIPE"},
		{"pipe missing", map[string]string{EnvAddress: "x"}, "missing required configuration: BT_ADDR_PIPE"},
		{"bad mode", map[string]string{EnvAddress: "x", EnvRelayPipe: "off", EnvMode: "p2p"}, "NFC_MODE"},
		{"bad port", map[string]string{EnvAddress: "x", EnvRelayPipe: "off", EnvPort: "http"}, "NFC_HANDOFF_PORT"},
		{"port out of range", map[string]string{EnvAddress: "x", EnvRelayPipe: "off", EnvPort: "70000"}, "NFC_HANDOFF_PORT"},
		{"bad mdns", map[string]string{EnvAddress: "x", EnvRelayPipe: "off", EnvMDNS: "maybe"}, "NFC_HANDOFF_MDNS"},
		{"missing file", map[string]string{EnvConfigFile: "/nonexistent/agent.yaml"}, "config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(envLookup(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bt_addr: "AA:BB:CC:DD:EE:FF"
bt_addr_pipe: /run/bt_addr
nfc_mode: tag
nfc_handoff_port: 0
nfc_handoff_mdns: true
`), 0o644))

	cfg, err := LoadConfig(envLookup(map[string]string{EnvConfigFile: path}))
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Address)
	assert.Equal(t, "/run/bt_addr", cfg.AddressPipe)
	assert.Equal(t, "tag", cfg.Mode)
	assert.Zero(t, cfg.Port)
	assert.True(t, cfg.MDNS)

	// the environment wins over the file
	cfg, err = LoadConfig(envLookup(map[string]string{
		EnvConfigFile: path,
		EnvAddress:    "11:22:33:44:55:66",
		EnvMode:       "dep",
	}))
	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", cfg.Address)
	assert.Equal(t, "dep", cfg.Mode)
	assert.Equal(t, "/run/bt_addr", cfg.AddressPipe)
}

func TestLoadConfigFileUnknownKey(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bt_address: typo\n"), 0o644))

	_, err := LoadConfig(envLookup(map[string]string{EnvConfigFile: path}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bt_address")
}
