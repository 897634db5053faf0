package medoc

import (
	"errors"
	"log/slog"
	"time"
)

// pollConfig holds mutable state while poll options are applied.
type pollConfig struct {
	interval    time.Duration
	maxAttempts int
	maxDuration time.Duration
	settleDelay time.Duration
	progress    []func(PollProgress)
	logger      *slog.Logger
}

// PollOption is a function that configures a single [PollForChange] call.
//
// Built-in options: [WithPollInterval], [WithMaxAttempts],
// [WithMaxDuration], [WithSettleDelay], [WithProgress], [WithPollLogger].
type PollOption func(*pollConfig) error

// WithPollInterval sets the delay between consecutive queries.
//
// Defaults to 500ms. Intervals below 10ms are rejected; the device cannot
// answer faster than that and hammering it starves its control loop.
func WithPollInterval(d time.Duration) PollOption {
	return func(cfg *pollConfig) error {
		if d < 10*time.Millisecond {
			return errors.New("poll interval must be at least 10ms")
		}
		cfg.interval = d
		return nil
	}
}

// WithMaxAttempts caps the number of queries. Once the cap is reached the
// poll returns a non-matched [PollResult] with a nil error.
//
// Zero means unlimited, which is the default.
func WithMaxAttempts(n int) PollOption {
	return func(cfg *pollConfig) error {
		if n < 0 {
			return errors.New("max attempts cannot be negative")
		}
		cfg.maxAttempts = n
		return nil
	}
}

// WithMaxDuration caps the total polling time. Once exceeded the poll
// returns a non-matched [PollResult] with a nil error, within one poll
// interval of the cap.
//
// Zero means unlimited, which is the default. A context deadline bounds the
// poll too, but expires with a context error instead of a quiet non-match.
func WithMaxDuration(d time.Duration) PollOption {
	return func(cfg *pollConfig) error {
		if d < 0 {
			return errors.New("max duration cannot be negative")
		}
		cfg.maxDuration = d
		return nil
	}
}

// WithSettleDelay adds a pause after a successful match before the poll
// returns.
//
// The device can miss a command sent immediately after a state transition;
// a settle delay of around a second absorbs that. Defaults to zero — the
// match is reported as soon as it is observed.
func WithSettleDelay(d time.Duration) PollOption {
	return func(cfg *pollConfig) error {
		if d < 0 {
			return errors.New("settle delay cannot be negative")
		}
		cfg.settleDelay = d
		return nil
	}
}

// WithProgress registers a callback invoked once per poll attempt with the
// attempt number and the observed value (or the query error, which is being
// retried).
//
// Multiple callbacks may be registered; they run in registration order,
// synchronously within the poll loop, so they must be quick. Panics are
// recovered and logged with a correlation ID and never propagate.
//
// Nil callbacks are silently ignored.
func WithProgress(cb func(PollProgress)) PollOption {
	return func(cfg *pollConfig) error {
		if cb == nil {
			return nil
		}
		cfg.progress = append(cfg.progress, cb)
		return nil
	}
}

// WithPollLogger sets the logger used for recovered progress-callback
// panics. [Pathway.PollForChange] passes the client's logger automatically;
// the standalone [PollForChange] falls back to [slog.Default].
//
// Returns an error if the logger is nil.
func WithPollLogger(logger *slog.Logger) PollOption {
	return func(cfg *pollConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
