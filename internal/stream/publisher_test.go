package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/cosanlab/medoc"
)

// fakeWatcher returns a fixed response or error for every status query.
type fakeWatcher struct {
	resp *medoc.Response
	err  error
}

func (f *fakeWatcher) Status(ctx context.Context) (*medoc.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freePort reserves an ephemeral port and releases it for the broker.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// startBroker runs an in-process MQTT broker and returns it with its URL.
func startBroker(t *testing.T) (*mochi.Server, string) {
	t.Helper()

	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("failed to add auth hook: %v", err)
	}

	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("failed to add listener: %v", err)
	}

	go func() {
		_ = server.Serve()
	}()
	t.Cleanup(func() { _ = server.Close() })

	return server, "mqtt://" + addr
}

func validConfig(brokerURL string) Config {
	return Config{
		BrokerURL: brokerURL,
		Topic:     "medoc/pathway/state",
		ClientID:  "stream-test",
		Interval:  50 * time.Millisecond,
		QoS:       1,
		KeepAlive: 20,
	}
}

func TestNewPublisher_Validation(t *testing.T) {
	dev := &fakeWatcher{resp: &medoc.Response{}}

	tests := []struct {
		name   string
		mutate func(*Config)
		nilDev bool
	}{
		{"nil device", func(c *Config) {}, true},
		{"empty topic", func(c *Config) { c.Topic = "" }, false},
		{"empty client id", func(c *Config) { c.ClientID = "" }, false},
		{"zero interval", func(c *Config) { c.Interval = 0 }, false},
		{"bad qos", func(c *Config) { c.QoS = 3 }, false},
		{"no scheme", func(c *Config) { c.BrokerURL = "localhost:1883" }, false},
		{"unparseable url", func(c *Config) { c.BrokerURL = "mqtt://bad url:1883" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig("mqtt://localhost:1883")
			tt.mutate(&cfg)
			watcher := Watcher(dev)
			if tt.nilDev {
				watcher = nil
			}
			if _, err := NewPublisher(cfg, watcher, testLogger()); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	if _, err := NewPublisher(validConfig("mqtt://localhost:1883"), dev, testLogger()); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestObserve(t *testing.T) {
	dev := &fakeWatcher{resp: &medoc.Response{
		SystemState: medoc.SystemTest,
		TestState:   medoc.TestRunning,
		Result:      medoc.ResultOK,
		TestTime:    90 * time.Second,
	}}
	p, err := NewPublisher(validConfig("mqtt://localhost:1883"), dev, testLogger())
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	obs := p.observe(context.Background())
	if obs.PathwayState != "TEST" || obs.TestState != "RUNNING" {
		t.Errorf("observe() = %+v, want TEST/RUNNING", obs)
	}
	if obs.TestTime != "00:01:30.000" {
		t.Errorf("TestTime = %q, want 00:01:30.000", obs.TestTime)
	}
	if obs.Error != "" {
		t.Errorf("Error = %q, want empty", obs.Error)
	}
	if obs.ObservedAt.IsZero() {
		t.Error("ObservedAt is zero")
	}
}

func TestObserve_DeviceFailure(t *testing.T) {
	dev := &fakeWatcher{err: errors.New("dial tcp: connection refused")}
	p, err := NewPublisher(validConfig("mqtt://localhost:1883"), dev, testLogger())
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	obs := p.observe(context.Background())
	if obs.Error == "" {
		t.Error("Error is empty, want device failure text")
	}
	if obs.TestState != "" {
		t.Errorf("TestState = %q, want empty on failure", obs.TestState)
	}
}

func TestRun_PublishesObservations(t *testing.T) {
	server, brokerURL := startBroker(t)

	received := make(chan []byte, 16)
	err := server.Subscribe("medoc/pathway/state", 1,
		func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
			received <- pk.Payload
		})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	dev := &fakeWatcher{resp: &medoc.Response{
		SystemState: medoc.SystemReady,
		TestState:   medoc.TestIdle,
		Result:      medoc.ResultOK,
	}}
	p, err := NewPublisher(validConfig(brokerURL), dev, testLogger())
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case payload := <-received:
		var obs Observation
		if err := json.Unmarshal(payload, &obs); err != nil {
			t.Fatalf("invalid observation JSON: %v", err)
		}
		if obs.PathwayState != "READY" {
			t.Errorf("pathway_state = %q, want READY", obs.PathwayState)
		}
		if obs.TestState != "IDLE" {
			t.Errorf("test_state = %q, want IDLE", obs.TestState)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no observation published within 5s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}

func TestRun_DeviceDownStillPublishes(t *testing.T) {
	server, brokerURL := startBroker(t)

	received := make(chan []byte, 16)
	err := server.Subscribe("medoc/pathway/state", 1,
		func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
			received <- pk.Payload
		})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	dev := &fakeWatcher{err: errors.New("dial tcp: connection refused")}
	p, err := NewPublisher(validConfig(brokerURL), dev, testLogger())
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	select {
	case payload := <-received:
		var obs Observation
		if err := json.Unmarshal(payload, &obs); err != nil {
			t.Fatalf("invalid observation JSON: %v", err)
		}
		if obs.Error == "" {
			t.Error("observation should carry the device failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no observation published within 5s")
	}
}
