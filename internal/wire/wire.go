package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Frame section sizes in bytes.
const (
	headerLen       = 4  // length prefix
	commandBodyLen  = 5  // timestamp + command code
	programBodyLen  = 9  // timestamp + command code + protocol number
	responseBodyLen = 13 // timestamp through test time; error message follows
)

// MinResponseLen is the smallest complete response frame: the length prefix
// plus the fixed 13-byte body.
const MinResponseLen = headerLen + responseBodyLen

// ErrMalformed reports a frame that does not follow the Pathway framing
// rules: truncated, inconsistent with its own length prefix, or too short
// to carry the fixed response fields.
var ErrMalformed = errors.New("malformed pathway frame")

// Command is the decoded form of a command frame.
//
// Protocol is only meaningful when HasProtocol is true; the device requires
// it for TEST_PROGRAM and rejects it elsewhere, so the codec keeps the two
// shapes explicit rather than treating zero as absent.
type Command struct {
	// SentAt is the frame timestamp, truncated to whole seconds on the wire.
	SentAt time.Time

	// Code is the raw command code byte.
	Code byte

	// Protocol is the protocol number carried by TEST_PROGRAM frames.
	Protocol uint32

	// HasProtocol indicates whether the frame carries a protocol number.
	HasProtocol bool
}

// EncodeCommand builds the on-wire representation of a command frame.
func EncodeCommand(c Command) []byte {
	bodyLen := commandBodyLen
	if c.HasProtocol {
		bodyLen = programBodyLen
	}

	frame := make([]byte, headerLen+bodyLen)
	binary.LittleEndian.PutUint32(frame[0:4], uint32(bodyLen))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(c.SentAt.Unix()))
	frame[8] = c.Code
	if c.HasProtocol {
		binary.LittleEndian.PutUint32(frame[9:13], c.Protocol)
	}
	return frame
}

// DecodeCommand parses a command frame as the device receives it.
// Used by the simulator; the client only encodes commands.
func DecodeCommand(frame []byte) (Command, error) {
	if len(frame) < headerLen+commandBodyLen {
		return Command{}, fmt.Errorf("command frame is %d bytes, need at least %d: %w",
			len(frame), headerLen+commandBodyLen, ErrMalformed)
	}

	bodyLen := binary.LittleEndian.Uint32(frame[0:4])
	if bodyLen != commandBodyLen && bodyLen != programBodyLen {
		return Command{}, fmt.Errorf("command frame declares body of %d bytes: %w", bodyLen, ErrMalformed)
	}
	if len(frame) < headerLen+int(bodyLen) {
		return Command{}, fmt.Errorf("command frame is %d bytes but declares %d-byte body: %w",
			len(frame), bodyLen, ErrMalformed)
	}

	c := Command{
		SentAt: time.Unix(int64(binary.LittleEndian.Uint32(frame[4:8])), 0),
		Code:   frame[8],
	}
	if bodyLen == programBodyLen {
		c.Protocol = binary.LittleEndian.Uint32(frame[9:13])
		c.HasProtocol = true
	}
	return c, nil
}

// Response is the decoded form of a device status frame. Fields are kept as
// raw wire values; the medoc package maps them onto typed codes and rejects
// values the device never emits.
type Response struct {
	// Length is the body length declared by the frame.
	Length uint32

	// Timestamp is the device clock as unix seconds.
	Timestamp uint32

	// Command echoes the command code this frame answers.
	Command byte

	// SystemState is the raw pathway state code.
	SystemState byte

	// TestState is the raw test state code.
	TestState byte

	// Result is the raw result code.
	Result uint16

	// TestTimeMS is milliseconds since the device was switched on.
	TestTimeMS uint32

	// ErrorMessage is the trailing message bytes, present only when the
	// declared body length exceeds the fixed 13 bytes.
	ErrorMessage []byte
}

// EncodeResponse builds the on-wire representation of a status frame.
// Used by the simulator; the client only decodes responses.
func EncodeResponse(r Response) []byte {
	bodyLen := responseBodyLen + len(r.ErrorMessage)

	frame := make([]byte, headerLen+bodyLen)
	binary.LittleEndian.PutUint32(frame[0:4], uint32(bodyLen))
	binary.LittleEndian.PutUint32(frame[4:8], r.Timestamp)
	frame[8] = r.Command
	frame[9] = r.SystemState
	frame[10] = r.TestState
	binary.LittleEndian.PutUint16(frame[11:13], r.Result)
	binary.LittleEndian.PutUint32(frame[13:17], r.TestTimeMS)
	copy(frame[17:], r.ErrorMessage)
	return frame
}

// DecodeResponse parses a device status frame.
//
// The frame must contain at least the fixed 13-byte body and be long enough
// to satisfy its own length prefix. Trailing bytes beyond the declared
// length are ignored (the device pads reads to the receive buffer).
func DecodeResponse(frame []byte) (Response, error) {
	if len(frame) < MinResponseLen {
		return Response{}, fmt.Errorf("response frame is %d bytes, need at least %d: %w",
			len(frame), MinResponseLen, ErrMalformed)
	}

	bodyLen := binary.LittleEndian.Uint32(frame[0:4])
	if bodyLen < responseBodyLen {
		return Response{}, fmt.Errorf("response frame declares body of %d bytes, need at least %d: %w",
			bodyLen, responseBodyLen, ErrMalformed)
	}
	if len(frame) < headerLen+int(bodyLen) {
		return Response{}, fmt.Errorf("response frame is %d bytes but declares %d-byte body: %w",
			len(frame), bodyLen, ErrMalformed)
	}

	r := Response{
		Length:      bodyLen,
		Timestamp:   binary.LittleEndian.Uint32(frame[4:8]),
		Command:     frame[8],
		SystemState: frame[9],
		TestState:   frame[10],
		Result:      binary.LittleEndian.Uint16(frame[11:13]),
		TestTimeMS:  binary.LittleEndian.Uint32(frame[13:17]),
	}
	if bodyLen > responseBodyLen {
		msg := frame[headerLen+responseBodyLen : headerLen+bodyLen]
		r.ErrorMessage = append([]byte(nil), msg...)
	}
	return r, nil
}

// BodyLength reads the length prefix of a frame header. The transport uses
// it to size the body read after receiving the first four bytes.
func BodyLength(header []byte) (int, error) {
	if len(header) < headerLen {
		return 0, fmt.Errorf("frame header is %d bytes, need %d: %w", len(header), headerLen, ErrMalformed)
	}
	return int(binary.LittleEndian.Uint32(header[0:4])), nil
}

// HeaderLen is the size of the length prefix shared by all frames.
const HeaderLen = headerLen
