package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cosanlab/medoc/internal/wire"
)

// DialFunc dials a network connection. It matches net.Dialer.DialContext so
// a real dialer is the zero-configuration default and tests can substitute
// in-process listeners or pipes.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Transport performs command/response exchanges with a single device
// address. It holds no connection state between exchanges; the device
// requires a fresh connection per command.
type Transport struct {
	addr       string
	timeout    time.Duration
	bufferSize int
	dial       DialFunc
}

// New creates a [Transport] for the given device address.
//
// timeout bounds the whole exchange (dial, write, read) unless the caller's
// context expires sooner. bufferSize caps the response body; frames that
// declare a larger body are rejected as malformed rather than read.
// A nil dial falls back to a plain net.Dialer.
func New(addr string, timeout time.Duration, bufferSize int, dial DialFunc) *Transport {
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	return &Transport{
		addr:       addr,
		timeout:    timeout,
		bufferSize: bufferSize,
		dial:       dial,
	}
}

// Addr returns the device address this transport exchanges with.
func (t *Transport) Addr() string {
	return t.addr
}

// Exchange sends one command frame and returns the complete response frame,
// including its length prefix.
//
// The connection is closed before Exchange returns, success or not. Errors
// from the network layer are returned as-is (wrapped) so callers can treat
// them as transient; framing violations wrap [wire.ErrMalformed].
func (t *Transport) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	conn, err := t.dial(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.addr, err)
	}
	defer func() { _ = conn.Close() }()

	// The deadline covers both the write and the read; ctx cancellation
	// additionally unblocks any in-flight I/O.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write to %s: %w", t.addr, err)
	}

	header := make([]byte, wire.HeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("read response header from %s: %w", t.addr, err)
	}

	bodyLen, err := wire.BodyLength(header)
	if err != nil {
		return nil, err
	}
	if bodyLen > t.bufferSize {
		return nil, fmt.Errorf("response body of %d bytes exceeds buffer size %d: %w",
			bodyLen, t.bufferSize, wire.ErrMalformed)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("read response body from %s: %w", t.addr, err)
	}

	return append(header, body...), nil
}
