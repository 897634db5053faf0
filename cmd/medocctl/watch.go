package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosanlab/medoc/config"
	"github.com/cosanlab/medoc/internal/stream"
)

// watchCmd streams device state to an MQTT broker.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream device state to MQTT",
	Long: `Query the device on a fixed interval and publish each observation to
an MQTT topic as retained JSON. Late subscribers immediately receive the
last known state. Device failures are published as observations with an
error field, so a crashed device shows up on the topic too.

The broker connection reconnects on its own; the stream runs until
interrupted (Ctrl+C) or SIGTERM.

Example:
  medocctl watch -c lab.yaml
  medocctl watch --host 192.168.0.114 --broker mqtt://localhost:1883`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("broker", "", "MQTT broker URL, e.g. mqtt://localhost:1883")
	watchCmd.Flags().String("topic", "", "topic to publish on (default medoc/pathway/state)")
	watchCmd.Flags().Duration("stream-interval", 0, "time between observations (default 1s)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dev, cfg, err := newDevice(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Device.Verbose)

	streamCfg, err := buildStreamConfig(cmd, cfg)
	if err != nil {
		return err
	}

	pub, err := stream.NewPublisher(streamCfg, dev, logger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	logger.Info("starting state stream",
		"device", dev.Addr(),
		"broker", streamCfg.BrokerURL,
		"topic", streamCfg.Topic,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pub.Run(ctx); err != nil {
		return fmt.Errorf("stream failed: %w", err)
	}
	logger.Info("stream stopped")
	return nil
}

// buildStreamConfig layers flags over the config file's stream section and
// fills in defaults for a flags-only invocation.
func buildStreamConfig(cmd *cobra.Command, cfg *config.Config) (stream.Config, error) {
	flags := cmd.Flags()

	streamCfg := stream.Config{
		BrokerURL: cfg.Stream.BrokerURL,
		Topic:     cfg.Stream.Topic,
		ClientID:  cfg.Stream.ClientID,
		Username:  cfg.Stream.Username,
		Password:  cfg.Stream.Password,
		Interval:  cfg.Stream.Interval.Duration(),
		QoS:       byte(cfg.Stream.QoS),
		KeepAlive: uint16(cfg.Stream.KeepAlive),
	}

	if broker, _ := flags.GetString("broker"); broker != "" {
		streamCfg.BrokerURL = broker
	}
	if topic, _ := flags.GetString("topic"); topic != "" {
		streamCfg.Topic = topic
	}
	if flags.Changed("stream-interval") {
		streamCfg.Interval, _ = flags.GetDuration("stream-interval")
	}

	if streamCfg.BrokerURL == "" {
		return stream.Config{}, errors.New("broker URL is required (use --broker or the stream section of a config file)")
	}
	if streamCfg.Topic == "" {
		streamCfg.Topic = "medoc/pathway/state"
	}
	if streamCfg.ClientID == "" {
		streamCfg.ClientID = "medocctl"
	}
	if streamCfg.Interval == 0 {
		streamCfg.Interval = time.Second
	}
	if streamCfg.KeepAlive == 0 {
		streamCfg.KeepAlive = 20
	}

	return streamCfg, nil
}
