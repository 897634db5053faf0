package medoc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

// DialFunc dials the TCP connection used for a single command exchange.
// It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// pathwayConfig holds mutable state during Pathway construction.
type pathwayConfig struct {
	timeout    time.Duration
	bufferSize int
	verbose    bool
	logger     *slog.Logger
	dial       DialFunc
}

// Option is a function that configures a [Pathway] client during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithTimeout], [WithBufferSize], [WithVerbose],
// [WithLogger], [WithDialer].
type Option func(*pathwayConfig) error

// WithTimeout sets the bound on a single command exchange: dialing the
// device, writing the command, and reading the response.
//
// Defaults to 5 seconds if not specified.
//
// Example:
//
//	dev, err := medoc.New("192.168.0.114", 20121,
//	    medoc.WithTimeout(10 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *pathwayConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithBufferSize sets the maximum response body size in bytes.
//
// Responses declaring a larger body are rejected as malformed. The device
// never sends more than a short error message past the fixed fields, so the
// 1024-byte default is generous already.
//
// Returns an error if the size cannot hold the fixed response fields.
func WithBufferSize(n int) Option {
	return func(cfg *pathwayConfig) error {
		if n < minBufferSize {
			return errors.New("buffer size must hold at least the fixed response fields")
		}
		cfg.bufferSize = n
		return nil
	}
}

// WithVerbose makes the client log every decoded device response at Info
// level instead of Debug. Useful when scripting an experiment session and
// watching the device react.
func WithVerbose(v bool) Option {
	return func(cfg *pathwayConfig) error {
		cfg.verbose = v
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the client.
//
// This controls where command/response logs and recovered callback panics
// are written. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pathwayConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithDialer sets the dial function used to reach the device.
//
// The default is a plain net.Dialer. Tests substitute dialers that point at
// in-process simulators; deployments with unusual routing can inject their
// own.
//
// Returns an error if the dial function is nil.
func WithDialer(dial DialFunc) Option {
	return func(cfg *pathwayConfig) error {
		if dial == nil {
			return errors.New("dial function cannot be nil")
		}
		cfg.dial = dial
		return nil
	}
}
