package config

import (
	"testing"
	"time"
)

func TestBuildDeviceOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  host: localhost
  timeout: 2s
  buffer_size: 2048
  verbose: true
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// timeout, buffer size, verbose
	if got := len(BuildDeviceOptions(cfg)); got != 3 {
		t.Errorf("len(BuildDeviceOptions) = %d, want 3", got)
	}
}

func TestBuildPollOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  host: localhost
poll:
  interval: 100ms
  max_attempts: 5
  max_duration: 30s
  settle_delay: 250ms
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := len(BuildPollOptions(cfg)); got != 4 {
		t.Errorf("len(BuildPollOptions) = %d, want 4", got)
	}
}

func TestNewDevice(t *testing.T) {
	cfg, err := Parse([]byte("device:\n  host: 192.168.0.114\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dev, err := NewDevice(cfg)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	if dev.Addr() != "192.168.0.114:20121" {
		t.Errorf("Addr() = %q, want 192.168.0.114:20121", dev.Addr())
	}
	if dev.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", dev.Timeout())
	}
}
