package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosanlab/medoc"
)

// simpleCommands maps subcommand names to device commands, with the help
// text shown for each. TEST_PROGRAM takes an argument and is defined
// separately as the program subcommand.
var simpleCommands = []struct {
	use   string
	cmd   medoc.Command
	short string
}{
	{"status", medoc.CmdStatus, "Query the current device state"},
	{"start", medoc.CmdStart, "Start the selected test program"},
	{"pause", medoc.CmdPause, "Pause the running test program"},
	{"trigger", medoc.CmdTrigger, "Send a manual trigger to the running program"},
	{"stop", medoc.CmdStop, "Stop the test program normally"},
	{"abort", medoc.CmdAbort, "Abort the test program immediately"},
	{"yes", medoc.CmdYes, "Answer YES to a device prompt"},
	{"no", medoc.CmdNo, "Answer NO to a device prompt"},
}

func init() {
	for _, sc := range simpleCommands {
		code := sc.cmd // capture for the closure
		rootCmd.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd, code)
			},
		})
	}

	rootCmd.AddCommand(programCmd)
}

// runCommand fires a single no-argument device command and prints the
// resulting device state.
func runCommand(cmd *cobra.Command, code medoc.Command) error {
	dev, _, err := newDevice(cmd)
	if err != nil {
		return err
	}

	resp, err := dev.Send(context.Background(), code)
	if err != nil {
		return fmt.Errorf("%s failed: %w", code, err)
	}

	printResponse(resp)
	if !resp.Result.OK() {
		return fmt.Errorf("device refused %s: %s", code, resp.Result)
	}
	return nil
}

// programCmd selects a test program by number.
var programCmd = &cobra.Command{
	Use:   "program <number>",
	Short: "Select a test program",
	Long: `Select a test program by its number in the Pathway software.

The device moves to the TEST state and runs the program's pre-test phase
(thermode checks, baseline). Wait for test state READY before starting:

  medocctl program 100 --host 192.168.0.114
  medocctl wait --target READY --host 192.168.0.114
  medocctl start --host 192.168.0.114`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func runProgram(cmd *cobra.Command, args []string) error {
	protocol, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("program number must be an integer, got %q", args[0])
	}

	dev, _, err := newDevice(cmd)
	if err != nil {
		return err
	}

	resp, err := dev.SelectProgram(context.Background(), protocol)
	if err != nil {
		return fmt.Errorf("program selection failed: %w", err)
	}

	printResponse(resp)
	if !resp.Result.OK() {
		return fmt.Errorf("device refused program %d: %s", protocol, resp.Result)
	}
	return nil
}
