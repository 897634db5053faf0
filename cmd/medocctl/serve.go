package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosanlab/medoc/internal/bridge"
)

const shutdownTimeout = 10 * time.Second

// serveCmd starts the HTTP bridge in front of the device.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP bridge",
	Long: `Start an HTTP server that exposes the device as a JSON API.

The Pathway accepts one command per TCP connection and has no notion of
concurrent clients, so the bridge is meant to be the only process talking
to the device; experiment software on other machines uses the API:

  GET  /api/status            current device state
  POST /api/commands/:name    start, pause, trigger, stop, abort, yes, no
  POST /api/program           {"program": 100}
  POST /api/wait              {"target": "RUNNING", "max_duration": "30s"}
  GET  /healthz               liveness (no device traffic)

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  medocctl serve -c lab.yaml
  medocctl serve --host 192.168.0.114 --listen-port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("listen-port", 0, "HTTP listen port (default 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	dev, cfg, err := newDevice(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Device.Verbose)

	port := cfg.Bridge.Port
	if cmd.Flags().Changed("listen-port") {
		port, _ = cmd.Flags().GetInt("listen-port")
	}
	if port == 0 {
		port = 8080
	}

	logger.Info("starting bridge",
		"device", dev.Addr(),
		"port", port,
	)

	srv := bridge.NewServer(dev, port, logger)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// the server gives in-flight requests a bounded window to finish
	select {
	case <-srv.Done():
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out",
			"timeout", shutdownTimeout.String(),
			"action", "forcing exit",
		)
	}
	return nil
}
