package simulator

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cosanlab/medoc/internal/wire"
)

// Raw command codes understood by the device.
const (
	cmdStatus      = 0
	cmdTestProgram = 1
	cmdStart       = 2
	cmdPause       = 3
	cmdTrigger     = 4
	cmdStop        = 5
	cmdAbort       = 6
	cmdYes         = 7
	cmdNo          = 8
)

// Raw state codes understood by the device.
const (
	sysIdle  = 0
	sysReady = 1
	sysTest  = 2

	testIdle    = 0
	testRunning = 1
	testPaused  = 2
	testReady   = 3
)

const resultIllegalArg = 1

// Simulator is a fake Pathway device listening on a loopback TCP port.
// All state mutators are safe for concurrent use with the serving loop.
type Simulator struct {
	ln        net.Listener
	host      string
	port      int
	logger    *slog.Logger
	startedAt time.Time

	mu           sync.Mutex
	systemState  byte
	testState    byte
	script       []byte // pending test states, one consumed per STATUS
	forcedResult *uint16
	errorMessage string
	corruptNext  bool
	statusCount  int
	commands     []byte
}

// Start creates a Simulator and begins serving. An empty addr binds an
// ephemeral loopback port.
func Start(addr string, logger *slog.Logger) (*Simulator, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("simulator listen on %s: %w", addr, err)
	}

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	s := &Simulator{
		ln:          ln,
		host:        host,
		port:        port,
		logger:      logger,
		startedAt:   time.Now(),
		systemState: sysReady,
		testState:   testIdle,
	}
	go s.serve()
	return s, nil
}

// Addr returns the listening address as host:port.
func (s *Simulator) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening host.
func (s *Simulator) Host() string {
	return s.host
}

// Port returns the listening port.
func (s *Simulator) Port() int {
	return s.port
}

// Close stops accepting connections. In-flight exchanges finish on their own.
func (s *Simulator) Close() error {
	return s.ln.Close()
}

// ScriptTestStates queues test states to report, one per STATUS query.
// Once the script is exhausted the last state sticks, which mirrors a real
// device holding a state until something changes it.
func (s *Simulator) ScriptTestStates(states ...byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, states...)
}

// SetStates sets the reported system and test states directly.
func (s *Simulator) SetStates(system, test byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemState = system
	s.testState = test
}

// ForceResult makes every response carry the given result code until
// cleared, optionally with an attached error message.
func (s *Simulator) ForceResult(code uint16, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedResult = &code
	s.errorMessage = message
}

// ClearForcedResult restores normal result reporting.
func (s *Simulator) ClearForcedResult() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedResult = nil
	s.errorMessage = ""
}

// CorruptNextResponse makes the next response carry state codes the device
// never emits, so clients exercise their malformed-response paths.
func (s *Simulator) CorruptNextResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptNext = true
}

// StatusCount returns how many STATUS queries have been answered.
func (s *Simulator) StatusCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCount
}

// Commands returns the command codes received so far, in order.
func (s *Simulator) Commands() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.commands...)
}

func (s *Simulator) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return // listener closed
		}
		go s.handleConn(conn)
	}
}

// handleConn answers exactly one command frame, matching the device's
// one-exchange-per-connection behavior.
func (s *Simulator) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	header := make([]byte, wire.HeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	bodyLen, err := wire.BodyLength(header)
	if err != nil || bodyLen > 64 {
		return
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}

	cmd, err := wire.DecodeCommand(append(header, body...))
	if err != nil {
		s.logger.Warn("simulator received malformed command frame", "error", err)
		return
	}

	reply := s.apply(cmd)
	if _, err := conn.Write(reply); err != nil {
		s.logger.Warn("simulator failed to write response", "error", err)
	}
}

// apply mutates device state for the command and builds the response frame.
func (s *Simulator) apply(cmd wire.Command) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, cmd.Code)

	var result uint16
	switch cmd.Code {
	case cmdStatus:
		s.statusCount++
		if len(s.script) > 0 {
			s.testState = s.script[0]
			s.script = s.script[1:]
		}
	case cmdTestProgram:
		s.systemState = sysTest
		s.testState = testReady
	case cmdStart:
		s.testState = testRunning
	case cmdPause:
		s.testState = testPaused
	case cmdTrigger, cmdYes, cmdNo:
		// no state change
	case cmdStop, cmdAbort:
		s.systemState = sysReady
		s.testState = testIdle
	default:
		result = resultIllegalArg
	}

	resp := wire.Response{
		Timestamp:   uint32(time.Now().Unix()),
		Command:     cmd.Code,
		SystemState: s.systemState,
		TestState:   s.testState,
		Result:      result,
		TestTimeMS:  uint32(time.Since(s.startedAt).Milliseconds()),
	}
	if s.forcedResult != nil {
		resp.Result = *s.forcedResult
		if s.errorMessage != "" {
			resp.ErrorMessage = []byte(s.errorMessage)
		}
	}
	if s.corruptNext {
		s.corruptNext = false
		resp.SystemState = 0x7f
		resp.TestState = 0x7f
	}

	return wire.EncodeResponse(resp)
}
