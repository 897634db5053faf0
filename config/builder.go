package config

import (
	"github.com/cosanlab/medoc"
)

// BuildDeviceOptions converts the device section into client options.
//
// Only values that differ from the client's own defaults are emitted, so a
// minimal config file keeps the client's behavior untouched.
func BuildDeviceOptions(cfg *Config) []medoc.Option {
	var opts []medoc.Option

	if cfg.Device.Timeout != 0 {
		opts = append(opts, medoc.WithTimeout(cfg.Device.Timeout.Duration()))
	}
	if cfg.Device.BufferSize != 0 {
		opts = append(opts, medoc.WithBufferSize(cfg.Device.BufferSize))
	}
	if cfg.Device.Verbose {
		opts = append(opts, medoc.WithVerbose(true))
	}

	return opts
}

// BuildPollOptions converts the poll section into polling options.
func BuildPollOptions(cfg *Config) []medoc.PollOption {
	var opts []medoc.PollOption

	if cfg.Poll.Interval != 0 {
		opts = append(opts, medoc.WithPollInterval(cfg.Poll.Interval.Duration()))
	}
	if cfg.Poll.MaxAttempts > 0 {
		opts = append(opts, medoc.WithMaxAttempts(cfg.Poll.MaxAttempts))
	}
	if cfg.Poll.MaxDuration != 0 {
		opts = append(opts, medoc.WithMaxDuration(cfg.Poll.MaxDuration.Duration()))
	}
	if cfg.Poll.SettleDelay != 0 {
		opts = append(opts, medoc.WithSettleDelay(cfg.Poll.SettleDelay.Duration()))
	}

	return opts
}

// NewDevice constructs a client for the configured device.
func NewDevice(cfg *Config) (*medoc.Pathway, error) {
	return medoc.New(cfg.Device.Host, cfg.Device.Port, BuildDeviceOptions(cfg)...)
}
