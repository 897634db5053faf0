// Package config provides configuration file parsing for medocctl.
//
// This package enables running the CLI against a device described in a
// file, as an alternative to repeating --host/--port flags. Both YAML and
// TOML are accepted; [Load] picks the format from the file extension.
//
// Example configuration:
//
//	device:
//	  host: 192.168.0.114
//	  port: 20121
//	  timeout: 5s
//
//	poll:
//	  interval: 500ms
//	  max_duration: 2m
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// minPollInterval is the fastest polling rate a config file may ask for.
// The device serves one command per TCP connection, so polling much faster
// than this only burns connections.
const minPollInterval = 10 * time.Millisecond

// Config is the root configuration structure for medocctl.
//
// It maps directly to the YAML/TOML file structure. Use [Load] or [Parse]
// to create a Config from file data.
type Config struct {
	// Device describes how to reach the Pathway device.
	Device DeviceConfig `yaml:"device" toml:"device"`

	// Poll sets the defaults for state polling (the wait command).
	Poll PollConfig `yaml:"poll" toml:"poll"`

	// Bridge configures the HTTP bridge started by the serve command.
	Bridge BridgeConfig `yaml:"bridge" toml:"bridge"`

	// Stream configures MQTT state publishing for the watch command.
	Stream StreamConfig `yaml:"stream" toml:"stream"`
}

// DeviceConfig describes the Pathway device connection.
type DeviceConfig struct {
	// Host is the device's IP address or hostname.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Host string `yaml:"host" toml:"host"`

	// Port is the device's command port. Defaults to 20121.
	Port int `yaml:"port" toml:"port"`

	// Timeout bounds each command exchange. Defaults to 5s.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// BufferSize is the receive buffer in bytes. Defaults to 1024.
	BufferSize int `yaml:"buffer_size" toml:"buffer_size"`

	// Verbose logs every device response at INFO instead of DEBUG.
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// PollConfig sets the defaults for waiting on device state changes.
type PollConfig struct {
	// Interval is the delay between consecutive state queries.
	// Defaults to 500ms.
	Interval Duration `yaml:"interval" toml:"interval"`

	// MaxAttempts caps the number of queries. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`

	// MaxDuration caps the total polling time. 0 means unlimited.
	MaxDuration Duration `yaml:"max_duration" toml:"max_duration"`

	// SettleDelay is an extra wait after the target state is observed,
	// for device firmware that needs a beat before the next command.
	SettleDelay Duration `yaml:"settle_delay" toml:"settle_delay"`
}

// BridgeConfig configures the HTTP bridge server.
type BridgeConfig struct {
	// Port is the HTTP listen port. Defaults to 8080.
	Port int `yaml:"port" toml:"port"`
}

// StreamConfig configures MQTT state publishing.
type StreamConfig struct {
	// BrokerURL is the MQTT broker, e.g. "mqtt://localhost:1883".
	// Supports environment variable substitution.
	BrokerURL string `yaml:"broker_url" toml:"broker_url"`

	// Topic is the topic state observations are published to.
	// Defaults to "medoc/pathway/state".
	Topic string `yaml:"topic" toml:"topic"`

	// ClientID identifies this publisher to the broker.
	// Defaults to "medocctl".
	ClientID string `yaml:"client_id" toml:"client_id"`

	// Username and Password authenticate against the broker.
	// Values support environment variable substitution.
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`

	// Interval is the time between published observations. Defaults to 1s.
	Interval Duration `yaml:"interval" toml:"interval"`

	// QoS is the MQTT quality of service (0, 1, or 2). Defaults to 1.
	QoS int `yaml:"qos" toml:"qos"`

	// KeepAlive is the MQTT keep-alive in seconds. Defaults to 20.
	KeepAlive int `yaml:"keep_alive" toml:"keep_alive"`
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.set(s)
}

// UnmarshalText implements encoding.TextUnmarshaler, which is how the TOML
// decoder hands over duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	return d.set(string(text))
}

func (d *Duration) set(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a configuration file.
//
// Files ending in .toml are parsed as TOML; everything else is parsed as
// YAML. Environment variables in the file are expanded after parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return finish(&cfg)
}

// ParseTOML parses TOML configuration data, applies defaults, and validates.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the values the file omitted.
func (c *Config) applyDefaults() {
	if c.Device.Port == 0 {
		c.Device.Port = 20121
	}
	if c.Device.Timeout == 0 {
		c.Device.Timeout = Duration(5 * time.Second)
	}
	if c.Device.BufferSize == 0 {
		c.Device.BufferSize = 1024
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = Duration(500 * time.Millisecond)
	}

	if c.Bridge.Port == 0 {
		c.Bridge.Port = 8080
	}

	if c.Stream.Topic == "" {
		c.Stream.Topic = "medoc/pathway/state"
	}
	if c.Stream.ClientID == "" {
		c.Stream.ClientID = "medocctl"
	}
	if c.Stream.Interval == 0 {
		c.Stream.Interval = Duration(time.Second)
	}
	if c.Stream.QoS == 0 {
		c.Stream.QoS = 1
	}
	if c.Stream.KeepAlive == 0 {
		c.Stream.KeepAlive = 20
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Device.Host == "" {
		return fmt.Errorf("device: host is required")
	}
	expanded, err := expandEnvVars(c.Device.Host)
	if err != nil {
		return fmt.Errorf("device: host: %w", err)
	}
	c.Device.Host = expanded

	if c.Device.Port < 1 || c.Device.Port > 65535 {
		return fmt.Errorf("device: port must be between 1 and 65535, got %d", c.Device.Port)
	}
	if c.Device.Timeout.Duration() <= 0 {
		return fmt.Errorf("device: timeout must be positive, got %s", c.Device.Timeout.Duration())
	}
	if c.Device.BufferSize < 13 {
		return fmt.Errorf("device: buffer_size must be at least 13 bytes, got %d", c.Device.BufferSize)
	}

	if c.Poll.Interval.Duration() < minPollInterval {
		return fmt.Errorf("poll: interval must be at least %s, got %s", minPollInterval, c.Poll.Interval.Duration())
	}
	if c.Poll.MaxAttempts < 0 {
		return fmt.Errorf("poll: max_attempts cannot be negative, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.MaxDuration.Duration() < 0 {
		return fmt.Errorf("poll: max_duration cannot be negative, got %s", c.Poll.MaxDuration.Duration())
	}
	if c.Poll.SettleDelay.Duration() < 0 {
		return fmt.Errorf("poll: settle_delay cannot be negative, got %s", c.Poll.SettleDelay.Duration())
	}

	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge: port must be between 1 and 65535, got %d", c.Bridge.Port)
	}

	// the stream section is optional; validate only when a broker is set
	if c.Stream.BrokerURL != "" {
		expanded, err := expandEnvVars(c.Stream.BrokerURL)
		if err != nil {
			return fmt.Errorf("stream: broker_url: %w", err)
		}
		c.Stream.BrokerURL = expanded

		for _, field := range []struct {
			name  string
			value *string
		}{
			{"username", &c.Stream.Username},
			{"password", &c.Stream.Password},
		} {
			expanded, err := expandEnvVars(*field.value)
			if err != nil {
				return fmt.Errorf("stream: %s: %w", field.name, err)
			}
			*field.value = expanded
		}

		if c.Stream.QoS < 0 || c.Stream.QoS > 2 {
			return fmt.Errorf("stream: qos must be 0, 1, or 2, got %d", c.Stream.QoS)
		}
		if c.Stream.Interval.Duration() < minPollInterval {
			return fmt.Errorf("stream: interval must be at least %s, got %s", minPollInterval, c.Stream.Interval.Duration())
		}
		if c.Stream.KeepAlive < 1 {
			return fmt.Errorf("stream: keep_alive must be positive, got %d", c.Stream.KeepAlive)
		}
	}

	return nil
}
