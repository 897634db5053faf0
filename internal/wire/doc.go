// Package wire implements the binary framing used by the Medoc Pathway
// thermal stimulator over TCP.
//
// This package is internal to medoc and handles both directions of the
// protocol: encoding command frames sent to the device and decoding the
// status frames it returns. The device simulator uses the reverse pair
// (DecodeCommand/EncodeResponse) to stand in for real hardware in tests.
//
// All multi-byte fields are little-endian. A frame is a 4-byte body length
// followed by the body itself:
//
//	command frame:  length | timestamp (4) | command (1) | protocol (4, TEST_PROGRAM only)
//	response frame: length | timestamp (4) | command (1) | system state (1) |
//	                test state (1) | result (2) | test time ms (4) | error message (0+)
//
// Users of the medoc library should not need to interact with this package
// directly; the Pathway client exposes decoded responses as typed values.
package wire
