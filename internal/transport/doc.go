// Package transport performs single command/response exchanges with a
// Pathway device over TCP.
//
// The device does not support persistent sessions: every command is sent on
// a fresh connection which is closed once the response frame has been read.
// Exchange is therefore the whole lifecycle — dial, write, read, close —
// bounded by the caller's context and the configured I/O timeout.
//
// This package is internal to medoc. The dial function is injectable so the
// client can be pointed at in-process fakes in tests.
package transport
