// Package bridge provides the HTTP API for driving a Pathway device.
//
// This package is internal to medoc and handles all HTTP concerns:
//
//   - Status: JSON endpoint at "/api/status" for the current device state
//   - Commands: "/api/commands/:name" and "/api/program" for control
//   - Waiting: "/api/wait" blocks until a watched attribute reaches a value
//
// The device accepts one command per TCP connection with no multiplexing,
// so the bridge exists to be that single connection owner; lab software
// on other machines talks to the bridge instead of the device.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests. It is started by the medocctl
// serve command.
package bridge
