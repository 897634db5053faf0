package medoc

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownAttribute reports a status attribute name the device does not
// expose. Polls abort on it immediately: an attribute that does not exist
// will not appear by asking again.
var ErrUnknownAttribute = errors.New("unknown response attribute")

// Command identifies an operation the Pathway device accepts.
//
// The numeric values are the on-wire command codes. Commands are issued via
// the convenience methods on [Pathway] or generically via [Pathway.Send];
// [CmdTestProgram] carries a protocol number and must go through
// [Pathway.SelectProgram].
type Command byte

const (
	// CmdStatus requests the current device status without side effects.
	CmdStatus Command = 0

	// CmdTestProgram selects a stimulation protocol by number.
	CmdTestProgram Command = 1

	// CmdStart starts the selected program's pre-test phase.
	CmdStart Command = 2

	// CmdPause pauses a running test.
	CmdPause Command = 3

	// CmdTrigger initiates stimulation delivery. Triggers are only honored
	// once the test state has reached RUNNING; see [PollForChange].
	CmdTrigger Command = 4

	// CmdStop stops the current test.
	CmdStop Command = 5

	// CmdAbort aborts the current test.
	CmdAbort Command = 6

	// CmdYes answers an operator confirmation prompt affirmatively.
	CmdYes Command = 7

	// CmdNo answers an operator confirmation prompt negatively.
	CmdNo Command = 8
)

var commandNames = map[Command]string{
	CmdStatus:      "STATUS",
	CmdTestProgram: "TEST_PROGRAM",
	CmdStart:       "START",
	CmdPause:       "PAUSE",
	CmdTrigger:     "TRIGGER",
	CmdStop:        "STOP",
	CmdAbort:       "ABORT",
	CmdYes:         "YES",
	CmdNo:          "NO",
}

// String returns the device's name for the command.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND(%d)", byte(c))
}

func (c Command) valid() bool {
	_, ok := commandNames[c]
	return ok
}

// SystemState is the overall pathway state reported by the device.
type SystemState byte

const (
	SystemIdle  SystemState = 0
	SystemReady SystemState = 1
	SystemTest  SystemState = 2
)

var systemStateNames = map[SystemState]string{
	SystemIdle:  "IDLE",
	SystemReady: "READY",
	SystemTest:  "TEST",
}

// String returns the device's name for the state. These are the values
// compared against poll targets for the "pathway_state" attribute.
func (s SystemState) String() string {
	if name, ok := systemStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SYSTEM_STATE(%d)", byte(s))
}

// TestState is the state of the currently selected test program.
type TestState byte

const (
	TestIdle    TestState = 0
	TestRunning TestState = 1
	TestPaused  TestState = 2
	TestReady   TestState = 3
)

var testStateNames = map[TestState]string{
	TestIdle:    "IDLE",
	TestRunning: "RUNNING",
	TestPaused:  "PAUSED",
	TestReady:   "READY",
}

// String returns the device's name for the state. These are the values
// compared against poll targets for the "test_state" attribute.
func (s TestState) String() string {
	if name, ok := testStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TEST_STATE(%d)", byte(s))
}

// ResultCode reports how the device handled a command.
type ResultCode uint16

const (
	ResultOK               ResultCode = 0
	ResultIllegalArg       ResultCode = 1
	ResultIllegalState     ResultCode = 2
	ResultIllegalTestState ResultCode = 3
	ResultDeviceCommError  ResultCode = 4096
	ResultSafetyWarning    ResultCode = 8192
	ResultSafetyError      ResultCode = 16384
)

var resultCodeNames = map[ResultCode]string{
	ResultOK:               "RESULT_OK",
	ResultIllegalArg:       "RESULT_ILLEGAL_ARG",
	ResultIllegalState:     "RESULT_ILLEGAL_STATE",
	ResultIllegalTestState: "RESULT_ILLEGAL_TEST_STATE",
	ResultDeviceCommError:  "RESULT_DEVICE_COMM_ERROR",
	ResultSafetyWarning:    "RESULT_SAFETY_WARNING",
	ResultSafetyError:      "RESULT_SAFETY_ERROR",
}

// String returns the device's name for the result code.
func (r ResultCode) String() string {
	if name, ok := resultCodeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(%d)", uint16(r))
}

// OK reports whether the command was accepted.
func (r ResultCode) OK() bool {
	return r == ResultOK
}

// Attribute names accepted by [Response.Field] and [Pathway.Query].
const (
	// AttrTestState is the state of the selected test program
	// (IDLE, RUNNING, PAUSED, READY).
	AttrTestState = "test_state"

	// AttrPathwayState is the overall device state (IDLE, READY, TEST).
	AttrPathwayState = "pathway_state"

	// AttrResult is the result code of the answered command.
	AttrResult = "result"

	// AttrCommand is the command the response answers.
	AttrCommand = "command"

	// AttrTestTime is the time since device power-on, as hh:mm:ss.mmm.
	AttrTestTime = "test_time"
)

// Response is a decoded status frame from the device.
//
// Every command the device accepts is answered with the same frame shape,
// so a Response always carries the full device state regardless of which
// command produced it.
type Response struct {
	// Command is the command this response answers.
	Command Command

	// SystemState is the overall pathway state.
	SystemState SystemState

	// TestState is the state of the selected test program.
	TestState TestState

	// Result reports how the command was handled.
	Result ResultCode

	// Timestamp is the device clock at response time, second resolution.
	Timestamp time.Time

	// TestTime is the time since the device was switched on.
	TestTime time.Duration

	// ErrorMessage is the device's error text, empty unless the device
	// attached one to the response.
	ErrorMessage string
}

// Field returns the named attribute of the response as a string.
//
// Supported names are [AttrTestState], [AttrPathwayState], [AttrResult],
// [AttrCommand], and [AttrTestTime]. These are the attributes a poll can
// watch; see [PollForChange].
func (r *Response) Field(name string) (string, error) {
	switch name {
	case AttrTestState:
		return r.TestState.String(), nil
	case AttrPathwayState:
		return r.SystemState.String(), nil
	case AttrResult:
		return r.Result.String(), nil
	case AttrCommand:
		return r.Command.String(), nil
	case AttrTestTime:
		return r.TestTimeString(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
}

// TestTimeString formats the test time the way the device's own software
// displays it: hh:mm:ss.mmm.
func (r *Response) TestTimeString() string {
	ms := r.TestTime.Milliseconds()
	hours := ms / 3600000
	mins := (ms % 3600000) / 60000
	secs := (ms % 60000) / 1000
	msecs := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, mins, secs, msecs)
}
