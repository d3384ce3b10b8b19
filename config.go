package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dotside-studios/nfc-handoff-agent/server"
	"github.com/dotside-studios/nfc-handoff-agent/session"
)

// Environment variables read by LoadConfig.
const (
	EnvAddress     = "BT_ADDR"
	EnvAddressPipe = "BT_ADDR_PIPE"
	EnvRelayPipe   = "NFC_RELAY_PIPE"
	EnvDevice      = "NFC_DEVICE"
	EnvMode        = "NFC_MODE"
	EnvPort        = "NFC_HANDOFF_PORT"
	EnvMDNS        = "NFC_HANDOFF_MDNS"
	EnvConfigFile  = "NFC_HANDOFF_CONFIG"
)

// RelayPipeOff disables the named pipe when set in NFC_RELAY_PIPE.
const RelayPipeOff = "off"

// Config is the agent configuration. Field tags name the keys of the
// optional YAML file.
type Config struct {
	// Address is sent to peers and served by the emulated tag.
	Address string `yaml:"bt_addr"`
	// AddressPipe is the named pipe received addresses are written to.
	AddressPipe string `yaml:"bt_addr_pipe"`
	RelayPipe   string `yaml:"nfc_relay_pipe"`
	// Device is a libnfc connection string or pn532_uart:<port>[:baud].
	// Empty opens the first libnfc device.
	Device string `yaml:"nfc_device"`
	Mode   string `yaml:"nfc_mode"`
	// Port of the WebSocket server; 0 disables it.
	Port int  `yaml:"nfc_handoff_port"`
	MDNS bool `yaml:"nfc_handoff_mdns"`
}

// PipeEnabled reports whether received addresses go to the named pipe.
func (c Config) PipeEnabled() bool {
	return !strings.EqualFold(c.RelayPipe, RelayPipeOff)
}

// LoadConfig reads the configuration from lookup, normally os.LookupEnv.
// A YAML file named by NFC_HANDOFF_CONFIG is applied first; environment
// values override it.
func LoadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{Port: server.DefaultPort}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if path, ok := get(EnvConfigFile); ok {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if v, ok := get(EnvAddress); ok {
		cfg.Address = v
	}
	if v, ok := get(EnvAddressPipe); ok {
		cfg.AddressPipe = v
	}
	if v, ok := get(EnvRelayPipe); ok {
		cfg.RelayPipe = v
	}
	if v, ok := get(EnvDevice); ok {
		cfg.Device = v
	}
	if v, ok := get(EnvMode); ok {
		cfg.Mode = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v, ok := get(EnvMDNS); ok {
		mdns, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvMDNS, v, err)
		}
		cfg.MDNS = mdns
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every missing required key in a single error.
func (c Config) Validate() error {
	var missing []string
	if c.Address == "" {
		missing = append(missing, EnvAddress)
	}
	if c.AddressPipe == "" && c.PipeEnabled() {
		missing = append(missing, EnvAddressPipe)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, err := session.ParseVariant(c.Mode); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvMode, err)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %s %d", EnvPort, c.Port)
	}
	return nil
}
