package medoc

import (
	"context"
	"fmt"
)

// Status requests the current device status. It has no side effects and is
// the command the poller issues on every attempt.
func (p *Pathway) Status(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdStatus, 0, false)
}

// SelectProgram loads the stimulation protocol with the given number.
// The device must know the protocol or it answers RESULT_ILLEGAL_ARG.
func (p *Pathway) SelectProgram(ctx context.Context, protocol int) (*Response, error) {
	if protocol < 1 {
		return nil, fmt.Errorf("protocol number must be positive, got %d", protocol)
	}
	return p.call(ctx, CmdTestProgram, uint32(protocol), true)
}

// Start begins the selected program. The device enters a pre-test phase of
// unpredictable length before triggers are honored; wait for the test state
// to reach RUNNING with [Pathway.PollForChange] before calling
// [Pathway.Trigger].
func (p *Pathway) Start(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdStart, 0, false)
}

// Pause pauses the running test.
func (p *Pathway) Pause(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdPause, 0, false)
}

// Trigger initiates stimulation delivery. Triggers sent during the pre-test
// phase are silently missed by the device, which is why trigger timing is
// aligned with the RUNNING test state via polling.
func (p *Pathway) Trigger(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdTrigger, 0, false)
}

// Stop stops the current test. The device takes a moment to wind down;
// poll for the IDLE test state before issuing further commands.
func (p *Pathway) Stop(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdStop, 0, false)
}

// Abort aborts the current test.
func (p *Pathway) Abort(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdAbort, 0, false)
}

// Yes answers an operator confirmation prompt affirmatively.
func (p *Pathway) Yes(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdYes, 0, false)
}

// No answers an operator confirmation prompt negatively.
func (p *Pathway) No(ctx context.Context) (*Response, error) {
	return p.call(ctx, CmdNo, 0, false)
}
