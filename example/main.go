// Demo of the medoc library against an in-process fake device.
//
// Usage:
//
//	go run ./example
//
// The session mirrors a real stimulation run: select a test program, wait
// for the pre-test phase to finish, start, trigger, stop, and wait for the
// device to come back to idle.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cosanlab/medoc"
	"github.com/cosanlab/medoc/internal/simulator"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// fake device; swap for your Pathway's IP to run against hardware
	sim, err := simulator.Start("127.0.0.1:0", logger)
	if err != nil {
		logger.Error("failed to start fake device", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sim.Close() }()

	// the fake device spends two status polls in pre-test before RUNNING
	sim.ScriptTestStates(
		byte(medoc.TestReady),
		byte(medoc.TestReady),
		byte(medoc.TestRunning),
	)

	dev, err := medoc.New(sim.Host(), sim.Port(),
		medoc.WithTimeout(2*time.Second),
		medoc.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create device client", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	resp, err := dev.Status(ctx)
	must(err, logger)
	fmt.Printf("device state: %s / %s\n", resp.SystemState, resp.TestState)

	// select program 100 and start it
	_, err = dev.SelectProgram(ctx, 100)
	must(err, logger)
	_, err = dev.Start(ctx)
	must(err, logger)

	// block until the stimulation phase begins
	res, err := dev.PollForChange(ctx, medoc.AttrTestState, "RUNNING",
		medoc.WithPollInterval(200*time.Millisecond),
		medoc.WithMaxDuration(10*time.Second),
		medoc.WithProgress(func(p medoc.PollProgress) {
			fmt.Printf("  poll %d: test_state = %s\n", p.Attempt, p.Value)
		}),
	)
	must(err, logger)
	if !res.Matched {
		logger.Error("program never started", "last_value", res.LastValue)
		os.Exit(1)
	}
	fmt.Printf("running after %d polls (%s)\n", res.Attempts, res.Elapsed.Round(time.Millisecond))

	// manual trigger mid-program, then stop
	_, err = dev.Trigger(ctx)
	must(err, logger)
	_, err = dev.Stop(ctx)
	must(err, logger)

	// wait for the device to wind down
	res, err = dev.PollForChange(ctx, medoc.AttrTestState, "IDLE",
		medoc.WithPollInterval(200*time.Millisecond),
		medoc.WithMaxDuration(10*time.Second),
	)
	must(err, logger)
	fmt.Printf("back to idle: %v\n", res.Matched)
}

func must(err error, logger *slog.Logger) {
	if err != nil {
		logger.Error("device command failed", "error", err)
		os.Exit(1)
	}
}
