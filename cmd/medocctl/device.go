package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosanlab/medoc"
	"github.com/cosanlab/medoc/config"
)

// defaultDevicePort is the Pathway external control port.
const defaultDevicePort = 20121

func init() {
	// connection flags are shared by every device-facing subcommand
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (YAML or TOML)")
	rootCmd.PersistentFlags().String("host", "", "device IP address or hostname")
	rootCmd.PersistentFlags().Int("port", defaultDevicePort, "device command port")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-command timeout (default 5s)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every device response")
}

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// resolveConfig builds the effective configuration from the config file (if
// given) with explicit flags layered on top.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var cfg *config.Config
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
		cfg.Device.Port = defaultDevicePort
	}

	if host, _ := flags.GetString("host"); host != "" {
		cfg.Device.Host = host
	}
	if flags.Changed("port") {
		cfg.Device.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Device.Timeout = config.Duration(d)
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Device.Verbose = true
	}

	if cfg.Device.Host == "" {
		return nil, errors.New("device host is required (use --host or a config file)")
	}

	return cfg, nil
}

// newDevice resolves configuration and constructs the device client.
func newDevice(cmd *cobra.Command) (*medoc.Pathway, *config.Config, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts := config.BuildDeviceOptions(cfg)
	opts = append(opts, medoc.WithLogger(newLogger(cfg.Device.Verbose)))

	dev, err := medoc.New(cfg.Device.Host, cfg.Device.Port, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create device client: %w", err)
	}
	return dev, cfg, nil
}

// printResponse writes a device response in human-readable form.
func printResponse(resp *medoc.Response) {
	fmt.Printf("command:       %s\n", resp.Command)
	fmt.Printf("pathway state: %s\n", resp.SystemState)
	fmt.Printf("test state:    %s\n", resp.TestState)
	fmt.Printf("result:        %s\n", resp.Result)
	fmt.Printf("test time:     %s\n", resp.TestTimeString())
	fmt.Printf("device clock:  %s\n", resp.Timestamp.Format(time.RFC3339))
	if resp.ErrorMessage != "" {
		fmt.Printf("device error:  %s\n", resp.ErrorMessage)
	}
}
