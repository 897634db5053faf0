// Package stream publishes Pathway device state to an MQTT broker.
//
// This package is internal to medoc and backs the medocctl watch command.
// A [Publisher] queries the device on a fixed interval and publishes each
// observation as retained JSON, so experiment software subscribed to the
// topic always has the latest state without talking to the device itself.
//
// The broker connection is managed by autopaho and survives broker
// restarts; device failures are published as observations carrying an
// error field rather than breaking the stream.
package stream
