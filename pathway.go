package medoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cosanlab/medoc/internal/transport"
	"github.com/cosanlab/medoc/internal/wire"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultBufferSize = 1024

	// minBufferSize is the smallest usable receive buffer: the fixed
	// response body. Anything smaller could never hold a valid frame.
	minBufferSize = 13
)

// ErrMalformedResponse reports a device response that violates the framing
// rules or carries codes the device never emits. It is distinct from
// transient network failures: a poll retries the latter but aborts on the
// former. Use errors.Is to test for it.
var ErrMalformedResponse = wire.ErrMalformed

// Pathway is a client for the Medoc Pathway thermal stimulation system.
//
// Pathway is created with [New] using functional options and issues commands
// over TCP, one connection per exchange — the device does not support
// concurrent sessions or connection reuse. All methods that touch the
// network take a context and block until the exchange completes, fails, or
// the context is cancelled.
//
// The typical experiment session is:
//
//	dev, err := medoc.New(host, port)
//	if err != nil { ... }
//
//	if err := dev.Ping(ctx); err != nil { ... }   // verify connectivity
//	dev.SelectProgram(ctx, 100)                   // load the protocol
//	dev.Start(ctx)                                // begin the pre-test phase
//
//	// the pre-test phase has unknowable length; wait it out
//	res, err := dev.PollForChange(ctx, medoc.AttrTestState, "RUNNING")
//	if res.Matched {
//	    dev.Trigger(ctx)                          // stimulation lands reliably
//	}
//
// A Pathway value is safe for use from a single goroutine at a time, which
// matches the device's own one-command-in-flight constraint.
type Pathway struct {
	host       string
	port       int
	timeout    time.Duration
	bufferSize int
	verbose    bool
	logger     *slog.Logger
	transport  *transport.Transport
}

// New creates a [Pathway] client for the device at host:port.
//
// New performs no I/O; use [Pathway.Ping] to verify the device is reachable.
// Defaults: 5 second exchange timeout, 1024-byte receive buffer,
// [slog.Default] logger.
//
// Returns an error if the host is empty, the port is out of range, or any
// option is invalid.
func New(host string, port int, opts ...Option) (*Pathway, error) {
	if host == "" {
		return nil, errors.New("host cannot be empty")
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	cfg := &pathwayConfig{
		timeout:    defaultTimeout,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return &Pathway{
		host:       host,
		port:       port,
		timeout:    cfg.timeout,
		bufferSize: cfg.bufferSize,
		verbose:    cfg.verbose,
		logger:     logger,
		transport:  transport.New(addr, cfg.timeout, cfg.bufferSize, transport.DialFunc(cfg.dial)),
	}, nil
}

// Addr returns the device address as host:port.
func (p *Pathway) Addr() string {
	return p.transport.Addr()
}

// Timeout returns the configured bound on a single command exchange.
func (p *Pathway) Timeout() time.Duration {
	return p.timeout
}

// Ping verifies connectivity by issuing a STATUS command and discarding the
// response. It is the explicit form of the connection check the device's
// operator software performs at startup.
func (p *Pathway) Ping(ctx context.Context) error {
	if _, err := p.Status(ctx); err != nil {
		return fmt.Errorf("cannot reach pathway at %s: %w", p.Addr(), err)
	}
	return nil
}

// Send issues a command without arguments and returns the decoded response.
//
// CmdTestProgram requires a protocol number; use [Pathway.SelectProgram]
// for it. Send returns an error for it rather than sending an incomplete
// frame the device would reject.
func (p *Pathway) Send(ctx context.Context, cmd Command) (*Response, error) {
	if cmd == CmdTestProgram {
		return nil, errors.New("TEST_PROGRAM requires a protocol number; use SelectProgram")
	}
	return p.call(ctx, cmd, 0, false)
}

// Query returns the named status attribute as a string, satisfying the
// [DeviceClient] contract used by [PollForChange]. It issues a STATUS
// command and extracts the field from the response.
func (p *Pathway) Query(ctx context.Context, attribute string) (string, error) {
	resp, err := p.Status(ctx)
	if err != nil {
		return "", err
	}
	return resp.Field(attribute)
}

// call performs one command exchange: encode, round trip, decode, validate.
func (p *Pathway) call(ctx context.Context, cmd Command, protocol uint32, hasProtocol bool) (*Response, error) {
	if !cmd.valid() {
		return nil, fmt.Errorf("unknown command code %d", byte(cmd))
	}

	frame := wire.EncodeCommand(wire.Command{
		SentAt:      time.Now(),
		Code:        byte(cmd),
		Protocol:    protocol,
		HasProtocol: hasProtocol,
	})

	raw, err := p.transport.Exchange(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	decoded, err := wire.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	resp, err := typedResponse(decoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	level := slog.LevelDebug
	if p.verbose {
		level = slog.LevelInfo
	}
	p.logger.Log(ctx, level, "pathway response",
		"command", resp.Command.String(),
		"pathway_state", resp.SystemState.String(),
		"test_state", resp.TestState.String(),
		"result", resp.Result.String(),
		"test_time", resp.TestTimeString(),
	)

	return resp, nil
}

// typedResponse maps raw wire values onto typed codes, rejecting values the
// device never emits as malformed.
func typedResponse(r wire.Response) (*Response, error) {
	cmd := Command(r.Command)
	if !cmd.valid() {
		return nil, fmt.Errorf("response carries unknown command code %d: %w", r.Command, ErrMalformedResponse)
	}
	sys := SystemState(r.SystemState)
	if _, ok := systemStateNames[sys]; !ok {
		return nil, fmt.Errorf("response carries unknown pathway state %d: %w", r.SystemState, ErrMalformedResponse)
	}
	ts := TestState(r.TestState)
	if _, ok := testStateNames[ts]; !ok {
		return nil, fmt.Errorf("response carries unknown test state %d: %w", r.TestState, ErrMalformedResponse)
	}
	res := ResultCode(r.Result)
	if _, ok := resultCodeNames[res]; !ok {
		return nil, fmt.Errorf("response carries unknown result code %d: %w", r.Result, ErrMalformedResponse)
	}

	return &Response{
		Command:      cmd,
		SystemState:  sys,
		TestState:    ts,
		Result:       res,
		Timestamp:    time.Unix(int64(r.Timestamp), 0),
		TestTime:     time.Duration(r.TestTimeMS) * time.Millisecond,
		ErrorMessage: string(r.ErrorMessage),
	}, nil
}
