package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
)

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// handle boxes a Client so it can live in an atomic.Pointer.
type handle struct {
	client Client
}

// Supervisor owns the single broker session.
//
// It waits for the link, creates the session handle exactly once and tracks
// the connected flag from session events. Publish is the gate every outgoing
// message passes through: it refuses while there is no handle or while the
// session is not connected, and never blocks or retries.
//
// The handle is published before the connected flag can be raised, so a
// reader that observes connected == true always finds a handle.
type Supervisor struct {
	cfg     config.MQTTConfig
	factory Factory
	link    Waiter
	logger  Logger

	client    atomic.Pointer[handle]
	connected atomic.Bool
	failed    atomic.Bool
	ran       atomic.Bool

	mu            sync.RWMutex
	onStateChange func(State)
}

// New creates a supervisor. Nothing happens until Run is called.
func New(cfg config.MQTTConfig, factory Factory, link Waiter, logger Logger) *Supervisor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Supervisor{
		cfg:     cfg,
		factory: factory,
		link:    link,
		logger:  logger,
	}
}

// SetOnStateChange registers a callback invoked on every state transition.
// The callback runs on the goroutine that caused the transition and must not block.
func (s *Supervisor) SetOnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// Run blocks until the link is ready, then creates and starts the session.
//
// Creation failure is terminal: Run logs it, moves to Failed and returns an
// error wrapping ErrSessionCreate. The supervisor never retries, and Publish
// returns ErrNoSession from then on. On success Run returns once the handle
// has been started; reconnection after that is the handle's job.
//
// Run may only be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	if s.link != nil {
		s.logger.Info("waiting for network link")
		if err := s.link.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for link: %w", err)
		}
	}

	s.logger.Info("link ready, creating mqtt session", "broker", s.cfg.Broker.URI)

	client, err := s.create()
	if err != nil {
		s.failed.Store(true)
		s.logger.Error("mqtt session creation failed", "error", err)
		s.notify(Failed)
		return err
	}

	s.client.Store(&handle{client: client})
	client.SetEventHandler(s.OnSessionEvent)
	s.notify(Starting)

	if err := client.Start(); err != nil {
		s.logger.Error("mqtt session start failed", "error", err)
		return fmt.Errorf("%w: %w", ErrSessionStart, err)
	}

	s.logger.Info("mqtt session started", "client_id", s.cfg.Broker.ClientID)
	return nil
}

func (s *Supervisor) create() (Client, error) {
	if s.factory == nil {
		return nil, fmt.Errorf("%w: no factory", ErrSessionCreate)
	}
	client, err := s.factory(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}
	if client == nil {
		return nil, ErrSessionCreate
	}
	return client, nil
}

// OnSessionEvent updates the connected flag from a session event.
//
// Connected raises the flag and Disconnected lowers it; every other kind is
// logged and leaves the flag untouched. A Connected event that arrives with
// no handle installed is ignored.
func (s *Supervisor) OnSessionEvent(ev Event) {
	switch ev.Kind {
	case Connected:
		if s.client.Load() == nil {
			s.logger.Warn("connected event without session handle, ignoring")
			return
		}
		if !s.connected.Swap(true) {
			s.logger.Info("mqtt session connected")
			s.notify(Live)
		}
	case Disconnected:
		if s.connected.Swap(false) {
			s.logger.Warn("mqtt session disconnected")
			s.notify(Starting)
		}
	case Published:
		s.logger.Debug("mqtt publish acknowledged", "msg_id", ev.ID)
	case Subscribed, Unsubscribed:
		s.logger.Debug("mqtt session event", "event", ev.Kind.String(), "msg_id", ev.ID)
	case Error:
		s.logger.Warn("mqtt session error", "error", ev.Err)
	default:
		s.logger.Debug("mqtt session event", "event", ev.Kind.String())
	}
}

// Publish hands a message to the session if one exists and is connected.
//
// It returns ErrNoSession when there is no handle and ErrNotConnected while
// the session is down. The returned ID is the transport's message identifier.
func (s *Supervisor) Publish(topic string, payload []byte, qos byte, retained bool) (uint16, error) {
	h := s.client.Load()
	if h == nil {
		return 0, ErrNoSession
	}
	if !s.connected.Load() {
		return 0, ErrNotConnected
	}
	return h.client.Publish(topic, payload, qos, retained)
}

// Connected reports whether the broker has acknowledged the session.
func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

// Client returns the session handle, or nil before creation and after failure.
func (s *Supervisor) Client() Client {
	h := s.client.Load()
	if h == nil {
		return nil
	}
	return h.client
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	switch {
	case s.failed.Load():
		return Failed
	case s.client.Load() == nil:
		return Uninitialized
	case s.connected.Load():
		return Live
	default:
		return Starting
	}
}

// Close disconnects the session if one exists.
func (s *Supervisor) Close() error {
	h := s.client.Load()
	if h == nil {
		return nil
	}
	s.connected.Store(false)
	return h.client.Close()
}

func (s *Supervisor) notify(state State) {
	s.mu.RLock()
	fn := s.onStateChange
	s.mu.RUnlock()
	if fn != nil {
		fn(state)
	}
}
