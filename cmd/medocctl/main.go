// Package main is the entry point for the medocctl CLI.
//
// medocctl drives a Medoc Pathway thermal stimulator over its TCP command
// port. It can fire individual commands, block until the device reaches a
// state, expose the device over HTTP, or stream its state to MQTT.
//
// Usage:
//
//	medocctl status --host 192.168.0.114      # Query device state
//	medocctl program 100 --host 192.168.0.114 # Select test program 100
//	medocctl wait --target RUNNING -c lab.yaml # Block until running
//	medocctl serve -c lab.yaml                 # Start the HTTP bridge
//	medocctl version                           # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "medocctl",
	Short: "Control a Medoc Pathway thermal stimulator",
	Long: `medocctl controls a Medoc Pathway thermal stimulator over TCP.

The device listens on port 20121 (External Control must be enabled in the
Pathway software). Every command answers with the full device state.

Quick start:
  1. Check the device is reachable:  medocctl status --host 192.168.0.114
  2. Select a test program:          medocctl program 100 --host 192.168.0.114
  3. Start it:                       medocctl start --host 192.168.0.114
  4. Wait for the stimulation phase: medocctl wait --target RUNNING --host 192.168.0.114

Connection settings can also come from a config file:
  device:
    host: 192.168.0.114
    port: 20121
    timeout: 5s`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this medocctl binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("medocctl %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
