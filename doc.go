// Package medoc provides a client for network control of the Medoc Pathway
// thermal stimulation system.
//
// The Pathway delivers heat stimuli in pain research experiments and exposes
// a small binary command set over TCP: load a protocol, start it, trigger
// stimulation, stop, and query status. The awkward part of driving it is
// timing: after START the device sits in a pre-test phase of unpredictable
// length, and any TRIGGER sent during that phase is silently lost. This
// package exists for [PollForChange], which watches a status attribute until
// it reaches a target value so trigger timing can be aligned with the
// device's internal phase transitions.
//
// # Quick Start
//
// Create a client, load a protocol, and trigger once the device is ready:
//
//	dev, err := medoc.New("192.168.0.114", 20121)
//	if err != nil {
//	    slog.Error("failed to create client", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx := context.Background()
//	if err := dev.Ping(ctx); err != nil { ... }
//
//	dev.SelectProgram(ctx, 100)
//	dev.Start(ctx)
//
//	res, err := dev.PollForChange(ctx, medoc.AttrTestState, "RUNNING",
//	    medoc.WithPollInterval(100*time.Millisecond),
//	    medoc.WithMaxDuration(30*time.Second),
//	)
//	if err != nil { ... }
//	if !res.Matched { ... } // ran out of time; caller decides
//
//	dev.Trigger(ctx)
//
// # Configuration
//
// Both the client and individual polls use the functional options pattern:
//
//	dev, err := medoc.New(host, port,
//	    medoc.WithTimeout(10*time.Second),
//	    medoc.WithVerbose(true),
//	    medoc.WithLogger(logger),
//	)
//
// # Polling Semantics
//
// A poll treats transient network failures like value mismatches and keeps
// retrying; exhausting the attempt or duration ceiling yields a non-matched
// result with a nil error, leaving the fatal/non-fatal decision to the
// caller. Malformed device responses abort the poll with
// [ErrMalformedResponse]. See [PollForChange] for the full contract.
//
// # Architecture
//
// The library consists of several internal packages (under internal/):
//
//   - internal/wire: binary frame encoding and decoding
//   - internal/transport: one-connection-per-command TCP exchanges
//   - internal/simulator: a scriptable in-process device for tests
//   - internal/bridge: HTTP control surface used by medocctl serve
//   - internal/stream: MQTT status publishing used by medocctl watch
//
// The internal packages are not part of the public API and may change
// without notice. The cmd/medocctl binary drives everything above from the
// command line with a YAML or TOML config file.
package medoc
