// Package dispatch receives robot commands from a Valkey pub/sub channel.
//
// Messages are JSON objects of the form {"type":"GoForward"}. Each decoded
// command is handed to an Invoker. Malformed and unknown commands are logged
// and dropped; the subscription itself is retried with exponential backoff
// until the context is cancelled.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
)

// Source is the value WithSource tags dispatched invocations with.
const Source = "dispatch"

const (
	initialRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// Message is the wire format on the dispatch channel.
type Message struct {
	Type       command.Name   `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Invoker runs a named command. *command.Publisher satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name command.Name) error
}

// Observer is told how each message was handled.
type Observer interface {
	ObserveDispatch(outcome string)
}

// Logger defines the logging interface for the subscriber.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// ReceiveFunc blocks delivering channel messages to fn until ctx ends or
// the subscription breaks.
type ReceiveFunc func(ctx context.Context, channel string, fn func(valkey.PubSubMessage)) error

// Subscriber consumes the dispatch channel.
type Subscriber struct {
	channel  string
	receive  ReceiveFunc
	invoker  Invoker
	observer Observer
	logger   Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient opens a Valkey client for the configured address.
func NewClient(cfg config.DispatchConfig) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey at %s: %w", cfg.Address, err)
	}
	return client, nil
}

// ValkeyReceiver adapts a valkey.Client to a ReceiveFunc.
func ValkeyReceiver(client valkey.Client) ReceiveFunc {
	return func(ctx context.Context, channel string, fn func(valkey.PubSubMessage)) error {
		return client.Receive(ctx, client.B().Subscribe().Channel(channel).Build(), fn)
	}
}

// NewSubscriber creates a subscriber on channel. observer and logger may be nil.
func NewSubscriber(channel string, receive ReceiveFunc, invoker Invoker, observer Observer, logger Logger) *Subscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Subscriber{
		channel:  channel,
		receive:  receive,
		invoker:  invoker,
		observer: observer,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Run subscribes until ctx is cancelled, resubscribing after failures with
// exponential backoff from 100ms to 30s. It returns ctx.Err().
func (s *Subscriber) Run(ctx context.Context) error {
	delay := initialRetryDelay
	s.logger.Info("dispatch subscriber starting", "channel", s.channel)

	for {
		err := s.receive(ctx, s.channel, func(msg valkey.PubSubMessage) {
			s.handle(ctx, msg)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			s.logger.Warn("dispatch subscription failed, retrying", "error", err, "delay", delay)
			if serr := s.sleep(ctx, delay); serr != nil {
				return serr
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			continue
		}

		// Clean return: reset and resubscribe after a short pause.
		delay = initialRetryDelay
		if serr := s.sleep(ctx, initialRetryDelay); serr != nil {
			return serr
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, msg valkey.PubSubMessage) {
	if msg.Channel != s.channel {
		return
	}

	var m Message
	if err := json.Unmarshal([]byte(msg.Message), &m); err != nil || m.Type == "" {
		s.logger.Warn("dispatch message malformed", "message", msg.Message, "error", err)
		s.observe("malformed")
		return
	}

	err := s.invoker.Invoke(command.WithSource(ctx, Source), m.Type)
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		s.logger.Warn("dispatch command unknown", "type", string(m.Type))
		s.observe("unknown")
	case err != nil:
		s.logger.Warn("dispatch command failed", "type", string(m.Type), "error", err)
		s.observe("failed")
	default:
		s.logger.Debug("dispatch command invoked", "type", string(m.Type))
		s.observe("invoked")
	}
}

func (s *Subscriber) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveDispatch(outcome)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
