// Standalone fake Pathway device for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockdevice
//
// Then in another terminal:
//
//	go run ./cmd/medocctl status --host 127.0.0.1
//	go run ./cmd/medocctl program 100 --host 127.0.0.1
//	go run ./cmd/medocctl wait --target READY --host 127.0.0.1
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cosanlab/medoc/internal/simulator"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	sim, err := simulator.Start("0.0.0.0:20121", logger)
	if err != nil {
		logger.Error("failed to start fake device", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sim.Close() }()

	fmt.Println("Fake Pathway device listening on", sim.Addr())
	fmt.Println("Commands move it through the usual states:")
	fmt.Println("  program -> TEST/READY, start -> RUNNING, stop/abort -> READY/IDLE")
	fmt.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
