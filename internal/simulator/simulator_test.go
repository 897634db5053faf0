package simulator

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/cosanlab/medoc/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// exchange dials the simulator, sends one command, and decodes the reply.
func exchange(t *testing.T, addr string, code byte) wire.Response {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	frame := wire.EncodeCommand(wire.Command{SentAt: time.Now(), Code: code})
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	resp, err := wire.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp
}

func TestStateTransitions(t *testing.T) {
	sim, err := Start("", testLogger())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = sim.Close() }()

	steps := []struct {
		code       byte
		wantSystem byte
		wantTest   byte
	}{
		{cmdStatus, sysReady, testIdle},
		{cmdTestProgram, sysTest, testReady},
		{cmdStart, sysTest, testRunning},
		{cmdPause, sysTest, testPaused},
		{cmdStart, sysTest, testRunning},
		{cmdStop, sysReady, testIdle},
	}
	for _, step := range steps {
		resp := exchange(t, sim.Addr(), step.code)
		if resp.SystemState != step.wantSystem || resp.TestState != step.wantTest {
			t.Errorf("command %d: states = %d/%d, want %d/%d",
				step.code, resp.SystemState, resp.TestState, step.wantSystem, step.wantTest)
		}
		if resp.Result != 0 {
			t.Errorf("command %d: result = %d, want 0", step.code, resp.Result)
		}
	}
}

func TestScriptedStates(t *testing.T) {
	sim, err := Start("", testLogger())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = sim.Close() }()

	sim.ScriptTestStates(testReady, testRunning)

	want := []byte{testReady, testRunning, testRunning} // last state sticks
	for i, w := range want {
		resp := exchange(t, sim.Addr(), cmdStatus)
		if resp.TestState != w {
			t.Errorf("status %d: test state = %d, want %d", i, resp.TestState, w)
		}
	}
	if sim.StatusCount() != len(want) {
		t.Errorf("StatusCount() = %d, want %d", sim.StatusCount(), len(want))
	}
}

func TestUnknownCommand(t *testing.T) {
	sim, err := Start("", testLogger())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = sim.Close() }()

	resp := exchange(t, sim.Addr(), 0x42)
	if resp.Result != resultIllegalArg {
		t.Errorf("result = %d, want %d", resp.Result, resultIllegalArg)
	}
}

func TestForcedResult(t *testing.T) {
	sim, err := Start("", testLogger())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = sim.Close() }()

	sim.ForceResult(8192, "thermode drift") // RESULT_SAFETY_WARNING
	resp := exchange(t, sim.Addr(), cmdStatus)
	if resp.Result != 8192 {
		t.Errorf("result = %d, want 8192", resp.Result)
	}
	if string(resp.ErrorMessage) != "thermode drift" {
		t.Errorf("error message = %q, want %q", resp.ErrorMessage, "thermode drift")
	}

	sim.ClearForcedResult()
	resp = exchange(t, sim.Addr(), cmdStatus)
	if resp.Result != 0 {
		t.Errorf("result after clear = %d, want 0", resp.Result)
	}
}
