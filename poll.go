package medoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// DeviceClient is the single-exchange query surface the poller depends on.
// [Pathway] satisfies it; tests substitute scripted implementations.
type DeviceClient interface {
	// Query returns the current value of a named status attribute.
	Query(ctx context.Context, attribute string) (string, error)
}

// PollResult holds the outcome of a [PollForChange] call.
//
// A poll that runs out of attempts or time is not an error: Matched is
// false, the error is nil, and the caller decides whether that is fatal.
type PollResult struct {
	// Matched reports whether the attribute reached the target value.
	Matched bool

	// Attempts is the number of queries issued, including the matching one.
	Attempts int

	// LastValue is the most recent successfully observed value. Empty if
	// every query failed.
	LastValue string

	// Elapsed is the total time spent polling, settle delay included.
	Elapsed time.Duration
}

// PollProgress is passed to progress callbacks once per poll attempt.
type PollProgress struct {
	// Attempt is the 1-based attempt number.
	Attempt int

	// Value is the observed attribute value. Empty when Err is set.
	Value string

	// Err is the query failure for this attempt, nil on success. Failed
	// attempts are retried like mismatches; see [PollForChange].
	Err error
}

// defaultPollInterval matches the device operator software's own polling
// cadence.
const defaultPollInterval = 500 * time.Millisecond

// PollForChange repeatedly queries a named status attribute until it equals
// target, then returns success.
//
// The first query is issued immediately; subsequent queries are spaced by
// the poll interval (default 500ms, see [WithPollInterval]). The loop ends
// in one of four ways:
//
//   - The observed value equals target: Matched is true, Attempts is the
//     position of the matching observation.
//   - The attempt or duration ceiling is reached ([WithMaxAttempts],
//     [WithMaxDuration]): Matched is false with a nil error. Running out of
//     patience is an expected outcome, not a fault.
//   - ctx is cancelled: the context error is returned.
//   - A query fails with [ErrMalformedResponse] or [ErrUnknownAttribute]:
//     the poll aborts and returns the error. A device speaking garbage will
//     not start speaking sense by being asked again, and an attribute that
//     does not exist will never match.
//
// Transient query failures — refused connections, timeouts, resets — are
// treated exactly like a value mismatch and retried: from the caller's
// perspective "the device is briefly unreachable" and "the value has not
// changed yet" call for the same response. With neither ceiling configured
// and no context deadline, the poll runs until it matches.
//
// This is the primitive that aligns a TRIGGER command with the device's
// internal phase transition: the pre-test phase has unknowable length, and
// triggers sent during it are lost.
func PollForChange(ctx context.Context, client DeviceClient, attribute, target string, opts ...PollOption) (PollResult, error) {
	var res PollResult

	if client == nil {
		return res, errors.New("device client cannot be nil")
	}
	if attribute == "" {
		return res, errors.New("attribute cannot be empty")
	}

	cfg := &pollConfig{interval: defaultPollInterval}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return res, err
		}
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	var deadline <-chan time.Time
	if cfg.maxDuration > 0 {
		timer := time.NewTimer(cfg.maxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for attempt := 1; ; attempt++ {
		value, err := client.Query(ctx, attribute)
		res.Attempts = attempt
		if err == nil {
			res.LastValue = value
		}

		if err != nil && (errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnknownAttribute)) {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("poll %s: %w", attribute, err)
		}

		for _, cb := range cfg.progress {
			notifyProgress(cb, PollProgress{Attempt: attempt, Value: value, Err: err}, logger)
		}

		if err == nil && value == target {
			res.Matched = true
			if cfg.settleDelay > 0 {
				if serr := sleepCtx(ctx, cfg.settleDelay); serr != nil {
					res.Elapsed = time.Since(start)
					return res, serr
				}
			}
			res.Elapsed = time.Since(start)
			return res, nil
		}

		if ctx.Err() != nil {
			res.Elapsed = time.Since(start)
			return res, ctx.Err()
		}
		if cfg.maxAttempts > 0 && attempt >= cfg.maxAttempts {
			res.Elapsed = time.Since(start)
			return res, nil
		}
		if cfg.maxDuration > 0 && time.Since(start) >= cfg.maxDuration {
			res.Elapsed = time.Since(start)
			return res, nil
		}

		wait := time.NewTimer(cfg.interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			res.Elapsed = time.Since(start)
			return res, ctx.Err()
		case <-deadline:
			wait.Stop()
			res.Elapsed = time.Since(start)
			return res, nil
		case <-wait.C:
		}
	}
}

// PollForChange polls this device; see the package-level [PollForChange].
// The client's logger is used for recovered callback panics unless
// overridden with [WithPollLogger].
func (p *Pathway) PollForChange(ctx context.Context, attribute, target string, opts ...PollOption) (PollResult, error) {
	merged := make([]PollOption, 0, len(opts)+1)
	merged = append(merged, WithPollLogger(p.logger))
	merged = append(merged, opts...)
	return PollForChange(ctx, p, attribute, target, merged...)
}

// notifyProgress calls a progress callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate: a
// misbehaving callback must not abort the wait it is observing.
func notifyProgress(cb func(PollProgress), pr PollProgress, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			logger.Error("poll progress callback panicked",
				"correlation_id", correlationID,
				"attempt", pr.Attempt,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(pr)
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
