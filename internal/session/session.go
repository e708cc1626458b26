package session

import (
	"context"

	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
)

// EventKind identifies a broker session lifecycle event.
type EventKind int

const (
	Connected EventKind = iota + 1
	Disconnected
	Subscribed
	Unsubscribed
	Published
	Error
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Subscribed:
		return "subscribed"
	case Unsubscribed:
		return "unsubscribed"
	case Published:
		return "published"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a session lifecycle notification from the broker client.
// ID carries the packet identifier when the transport provides one.
type Event struct {
	Kind EventKind
	ID   uint16
	Err  error
}

// EventHandler receives session events. It is called from the broker
// client's goroutines and must not block.
type EventHandler func(Event)

// Client is a broker session handle.
//
// Start begins connecting in the background and returns without waiting
// for the broker; the client reconnects on its own after a drop. Publish
// hands a message to the client and returns its message ID without waiting
// for delivery confirmation.
type Client interface {
	SetEventHandler(h EventHandler)
	Start() error
	Publish(topic string, payload []byte, qos byte, retained bool) (uint16, error)
	Close() error
}

// Factory creates a session handle from static configuration.
// Returning a nil Client or an error means creation failed.
type Factory func(cfg config.MQTTConfig) (Client, error)

// Waiter blocks until the network link is usable. *link.Monitor satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// State is the supervisor lifecycle state.
type State int

const (
	// Uninitialized: waiting for the link, no session handle yet.
	Uninitialized State = iota
	// Starting: handle exists, waiting for the broker to acknowledge a connection.
	Starting
	// Live: the broker acknowledged the connection and publishing is allowed.
	Live
	// Failed: the session handle could not be created. Terminal.
	Failed
)

// String returns the state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Starting:
		return "starting"
	case Live:
		return "live"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
