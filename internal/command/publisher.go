package command

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/tankbot-core/internal/session"
)

const (
	// DefaultQoS is at-least-once delivery.
	DefaultQoS byte = 1
	// DefaultTopic is the robot command topic.
	DefaultTopic = "tankrobot-topic"
)

// Gate accepts or refuses a publish. *session.Supervisor satisfies it.
type Gate interface {
	Publish(topic string, payload []byte, qos byte, retained bool) (uint16, error)
}

// Logger defines the logging interface for the publisher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Stats counts publish outcomes since start.
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Publisher turns command invocations into fire-and-forget publishes.
//
// Every attempt goes through the Gate. A refused attempt is logged, counted
// and recorded as dropped; it is never queued or retried, and the caller is
// not told. All methods are safe for concurrent use.
type Publisher struct {
	table    *Table
	gate     Gate
	topic    string
	qos      byte
	retained bool
	recorder Recorder
	logger   Logger
	now      func() time.Time

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTopic overrides the publish topic.
func WithTopic(topic string) Option {
	return func(p *Publisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithQoS overrides the publish QoS.
func WithQoS(qos byte) Option {
	return func(p *Publisher) { p.qos = qos }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a publisher for table that sends through gate.
// Messages go to DefaultTopic at QoS 1, not retained, unless overridden.
func NewPublisher(table *Table, gate Gate, opts ...Option) *Publisher {
	if table == nil {
		table = DefaultTable()
	}
	p := &Publisher{
		table:  table,
		gate:   gate,
		topic:  DefaultTopic,
		qos:    DefaultQoS,
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Table returns the publisher's command table.
func (p *Publisher) Table() *Table {
	return p.table
}

// Invoke publishes the payload bound to name.
//
// It returns ErrUnknownCommand for a name outside the table and nil for
// every known name, whether or not the message was delivered.
func (p *Publisher) Invoke(ctx context.Context, name Name) error {
	cmd, ok := p.table.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	p.publish(ctx, cmd.Name, cmd.Payload)
	return nil
}

// Publish sends an arbitrary payload on the command topic, subject to the gate.
func (p *Publisher) Publish(ctx context.Context, payload string) {
	p.publish(ctx, "", payload)
}

func (p *Publisher) publish(ctx context.Context, name Name, payload string) {
	out := Outcome{
		Command: name,
		Source:  SourceFrom(ctx),
		Payload: payload,
		Topic:   p.topic,
		At:      p.now().UTC(),
	}

	var err error
	if p.gate == nil {
		err = session.ErrNoSession
	} else {
		out.MessageID, err = p.gate.Publish(p.topic, []byte(payload), p.qos, p.retained)
	}

	if err != nil {
		out.Result = ResultDropped
		out.Reason = dropReason(err)
		p.dropped.Add(1)
		p.logger.Warn("publish dropped",
			"command", string(name),
			"payload", payload,
			"reason", out.Reason,
		)
	} else {
		out.Result = ResultPublished
		p.published.Add(1)
		p.logger.Info("sent publish successful",
			"command", string(name),
			"payload", payload,
			"msg_id", out.MessageID,
		)
	}

	if p.recorder != nil {
		p.recorder.Record(ctx, out)
	}
}

// dropReason maps gate errors to short stable strings for logs and storage.
func dropReason(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return "no_session"
	case errors.Is(err, session.ErrNotConnected):
		return "not_connected"
	default:
		return err.Error()
	}
}

// Stats returns the publish counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
	}
}
