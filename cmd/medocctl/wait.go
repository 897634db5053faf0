package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosanlab/medoc"
	"github.com/cosanlab/medoc/config"
)

// waitCmd polls the device until an attribute reaches a target value.
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until a device attribute reaches a value",
	Long: `Poll the device until the watched attribute reaches the target value.

The attribute defaults to test_state; valid targets for it are IDLE,
RUNNING, PAUSED, and READY. Other attributes: pathway_state (IDLE, READY,
TEST), result, command, test_time.

Exit codes:
  0 - target value reached
  1 - polling stopped without a match (attempts or duration exhausted),
      or the device returned malformed data

Examples:
  medocctl wait --target RUNNING --host 192.168.0.114
  medocctl wait --attribute pathway_state --target TEST --max-duration 30s -c lab.yaml`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)

	waitCmd.Flags().String("attribute", medoc.AttrTestState, "response attribute to watch")
	waitCmd.Flags().String("target", "", "value to wait for (required)")
	waitCmd.Flags().Duration("interval", 0, "delay between queries (default 500ms)")
	waitCmd.Flags().Int("max-attempts", 0, "stop after this many queries (0 = unlimited)")
	waitCmd.Flags().Duration("max-duration", 0, "stop after this much time (0 = unlimited)")
	waitCmd.Flags().Duration("settle-delay", 0, "extra wait after the target is reached")
	_ = waitCmd.MarkFlagRequired("target")
}

func runWait(cmd *cobra.Command, args []string) error {
	dev, cfg, err := newDevice(cmd)
	if err != nil {
		return err
	}

	attribute, _ := cmd.Flags().GetString("attribute")
	target, _ := cmd.Flags().GetString("target")

	opts := waitOptions(cmd, cfg)
	opts = append(opts, medoc.WithProgress(func(p medoc.PollProgress) {
		if p.Err != nil {
			fmt.Fprintf(os.Stderr, "attempt %d: %v\n", p.Attempt, p.Err)
			return
		}
		fmt.Fprintf(os.Stderr, "attempt %d: %s = %s\n", p.Attempt, attribute, p.Value)
	}))

	// Ctrl+C stops the poll cleanly
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, err := dev.PollForChange(ctx, attribute, target, opts...)
	if err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}

	if !res.Matched {
		return fmt.Errorf("%s did not reach %q after %d attempts in %s (last value %q)",
			attribute, target, res.Attempts, time.Since(start).Round(time.Millisecond), res.LastValue)
	}

	fmt.Printf("%s = %s after %d attempts in %s\n",
		attribute, target, res.Attempts, res.Elapsed.Round(time.Millisecond))
	return nil
}

// waitOptions layers flag values over the config file's poll section.
func waitOptions(cmd *cobra.Command, cfg *config.Config) []medoc.PollOption {
	opts := config.BuildPollOptions(cfg)

	flags := cmd.Flags()
	if flags.Changed("interval") {
		d, _ := flags.GetDuration("interval")
		opts = append(opts, medoc.WithPollInterval(d))
	}
	if flags.Changed("max-attempts") {
		n, _ := flags.GetInt("max-attempts")
		opts = append(opts, medoc.WithMaxAttempts(n))
	}
	if flags.Changed("max-duration") {
		d, _ := flags.GetDuration("max-duration")
		opts = append(opts, medoc.WithMaxDuration(d))
	}
	if flags.Changed("settle-delay") {
		d, _ := flags.GetDuration("settle-delay")
		opts = append(opts, medoc.WithSettleDelay(d))
	}

	return opts
}
