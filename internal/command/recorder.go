package command

import (
	"context"
	"time"
)

// Result is the fate of a publish attempt.
type Result string

const (
	ResultPublished Result = "published"
	ResultDropped   Result = "dropped"
)

// Outcome describes one publish attempt. Command is empty when the payload
// was published directly rather than through Invoke. Source names the
// surface that asked for it (see WithSource).
type Outcome struct {
	Command   Name      `json:"command,omitempty"`
	Source    string    `json:"source,omitempty"`
	Payload   string    `json:"payload"`
	Topic     string    `json:"topic"`
	Result    Result    `json:"result"`
	MessageID uint16    `json:"message_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type sourceKey struct{}

// WithSource tags ctx with the name of the invoking surface, e.g. "api".
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the surface name set by WithSource, or "".
func SourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// Recorder observes publish outcomes. Record must not block for long; it
// runs on the invoking goroutine.
type Recorder interface {
	Record(ctx context.Context, o Outcome)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, o Outcome)

// Record calls f(ctx, o).
func (f RecorderFunc) Record(ctx context.Context, o Outcome) { f(ctx, o) }

// Recorders fans an outcome out to every recorder in order.
type Recorders []Recorder

// Record implements Recorder.
func (rs Recorders) Record(ctx context.Context, o Outcome) {
	for _, r := range rs {
		if r != nil {
			r.Record(ctx, o)
		}
	}
}
