// Package simulator provides a scriptable in-process Pathway device.
//
// The simulator listens on a real TCP port and speaks the device's binary
// framing, so tests and the runnable example exercise the same client code
// paths used against hardware: dial per command, length-prefixed frames,
// status attributes.
//
// State transitions follow a simplified model (START moves the test state
// straight to RUNNING, STOP back to IDLE). The variable-length pre-test
// phase of the real device is reproduced by scripting an explicit test-state
// sequence with ScriptTestStates, consumed one entry per STATUS query.
package simulator
