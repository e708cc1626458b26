// Package session supervises the single MQTT broker session.
//
// The Supervisor waits for the network link, creates one session handle
// through a Factory and tracks whether the broker has acknowledged it. The
// handle itself (see internal/infrastructure/mqtt and mqtt5) owns transport
// reconnection; the supervisor only mirrors its Connected and Disconnected
// events into a flag and gates publishing on it.
//
// Lifecycle:
//
//	Uninitialized --link ready, create ok--> Starting <--> Live
//	Uninitialized --link ready, create fails--> Failed
//
// Failed is terminal. Publish returns ErrNoSession before a handle exists and
// ErrNotConnected while the session is down; it never queues.
package session
