package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
device:
  host: 192.168.0.114
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Device.Port != 20121 {
		t.Errorf("Device.Port = %d, want 20121", cfg.Device.Port)
	}
	if cfg.Device.Timeout.Duration() != 5*time.Second {
		t.Errorf("Device.Timeout = %v, want 5s", cfg.Device.Timeout.Duration())
	}
	if cfg.Device.BufferSize != 1024 {
		t.Errorf("Device.BufferSize = %d, want 1024", cfg.Device.BufferSize)
	}
	if cfg.Poll.Interval.Duration() != 500*time.Millisecond {
		t.Errorf("Poll.Interval = %v, want 500ms", cfg.Poll.Interval.Duration())
	}
	if cfg.Bridge.Port != 8080 {
		t.Errorf("Bridge.Port = %d, want 8080", cfg.Bridge.Port)
	}
	if cfg.Stream.Topic != "medoc/pathway/state" {
		t.Errorf("Stream.Topic = %q, want medoc/pathway/state", cfg.Stream.Topic)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
device:
  host: pathway.lab.local
  port: 20200
  timeout: 2s
  buffer_size: 2048
  verbose: true

poll:
  interval: 250ms
  max_attempts: 40
  max_duration: 2m
  settle_delay: 1s

bridge:
  port: 9090

stream:
  broker_url: mqtt://broker.lab.local:1883
  topic: lab/pathway
  client_id: rig-7
  qos: 2
  interval: 2s
  keep_alive: 30
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Device.Host != "pathway.lab.local" {
		t.Errorf("Device.Host = %q, want pathway.lab.local", cfg.Device.Host)
	}
	if cfg.Device.Port != 20200 {
		t.Errorf("Device.Port = %d, want 20200", cfg.Device.Port)
	}
	if cfg.Device.Timeout.Duration() != 2*time.Second {
		t.Errorf("Device.Timeout = %v, want 2s", cfg.Device.Timeout.Duration())
	}
	if !cfg.Device.Verbose {
		t.Error("Device.Verbose = false, want true")
	}
	if cfg.Poll.MaxAttempts != 40 {
		t.Errorf("Poll.MaxAttempts = %d, want 40", cfg.Poll.MaxAttempts)
	}
	if cfg.Poll.MaxDuration.Duration() != 2*time.Minute {
		t.Errorf("Poll.MaxDuration = %v, want 2m", cfg.Poll.MaxDuration.Duration())
	}
	if cfg.Poll.SettleDelay.Duration() != time.Second {
		t.Errorf("Poll.SettleDelay = %v, want 1s", cfg.Poll.SettleDelay.Duration())
	}
	if cfg.Bridge.Port != 9090 {
		t.Errorf("Bridge.Port = %d, want 9090", cfg.Bridge.Port)
	}
	if cfg.Stream.BrokerURL != "mqtt://broker.lab.local:1883" {
		t.Errorf("Stream.BrokerURL = %q", cfg.Stream.BrokerURL)
	}
	if cfg.Stream.QoS != 2 {
		t.Errorf("Stream.QoS = %d, want 2", cfg.Stream.QoS)
	}
}

func TestParseTOML(t *testing.T) {
	data := `
[device]
host = "192.168.0.114"
timeout = "3s"

[poll]
interval = "100ms"
max_attempts = 10
`
	cfg, err := ParseTOML([]byte(data))
	if err != nil {
		t.Fatalf("ParseTOML() error = %v", err)
	}

	if cfg.Device.Host != "192.168.0.114" {
		t.Errorf("Device.Host = %q, want 192.168.0.114", cfg.Device.Host)
	}
	if cfg.Device.Timeout.Duration() != 3*time.Second {
		t.Errorf("Device.Timeout = %v, want 3s", cfg.Device.Timeout.Duration())
	}
	if cfg.Poll.Interval.Duration() != 100*time.Millisecond {
		t.Errorf("Poll.Interval = %v, want 100ms", cfg.Poll.Interval.Duration())
	}
	if cfg.Poll.MaxAttempts != 10 {
		t.Errorf("Poll.MaxAttempts = %d, want 10", cfg.Poll.MaxAttempts)
	}
	// defaults still apply over TOML
	if cfg.Device.Port != 20121 {
		t.Errorf("Device.Port = %d, want 20121", cfg.Device.Port)
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "medoc.yaml")
	if err := os.WriteFile(yamlPath, []byte("device:\n  host: localhost\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tomlPath := filepath.Join(dir, "medoc.toml")
	if err := os.WriteFile(tomlPath, []byte("[device]\nhost = \"localhost\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{yamlPath, tomlPath} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", path, err)
		}
		if cfg.Device.Host != "localhost" {
			t.Errorf("Load(%s): Device.Host = %q, want localhost", path, cfg.Device.Host)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) expected error, got nil")
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("MEDOC_TEST_HOST", "10.0.0.5")
	t.Setenv("MEDOC_TEST_PASS", "hunter2")

	yaml := `
device:
  host: ${MEDOC_TEST_HOST}

stream:
  broker_url: mqtt://${MEDOC_TEST_BROKER:-localhost}:1883
  username: lab
  password: ${MEDOC_TEST_PASS}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Device.Host != "10.0.0.5" {
		t.Errorf("Device.Host = %q, want 10.0.0.5", cfg.Device.Host)
	}
	if cfg.Stream.BrokerURL != "mqtt://localhost:1883" {
		t.Errorf("Stream.BrokerURL = %q, want mqtt://localhost:1883", cfg.Stream.BrokerURL)
	}
	if cfg.Stream.Password != "hunter2" {
		t.Errorf("Stream.Password = %q, want hunter2", cfg.Stream.Password)
	}
}

func TestParse_EnvExpansion_MissingVariable(t *testing.T) {
	yaml := `
device:
  host: ${MEDOC_TEST_DEFINITELY_UNSET}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for unset environment variable, got nil")
	}
	if !strings.Contains(err.Error(), "MEDOC_TEST_DEFINITELY_UNSET") {
		t.Errorf("error %q should name the missing variable", err)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing host",
			yaml:    "poll:\n  interval: 1s\n",
			wantErr: "host is required",
		},
		{
			name:    "bad port",
			yaml:    "device:\n  host: x\n  port: 99999\n",
			wantErr: "port must be between",
		},
		{
			name:    "interval too fast",
			yaml:    "device:\n  host: x\npoll:\n  interval: 1ms\n",
			wantErr: "interval must be at least",
		},
		{
			name:    "negative max_attempts",
			yaml:    "device:\n  host: x\npoll:\n  max_attempts: -1\n",
			wantErr: "max_attempts cannot be negative",
		},
		{
			name:    "tiny buffer",
			yaml:    "device:\n  host: x\n  buffer_size: 4\n",
			wantErr: "buffer_size must be at least",
		},
		{
			name:    "bad qos",
			yaml:    "device:\n  host: x\nstream:\n  broker_url: mqtt://b:1883\n  qos: 5\n",
			wantErr: "qos must be",
		},
		{
			name:    "bad duration string",
			yaml:    "device:\n  host: x\n  timeout: fast\n",
			wantErr: "invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}
