package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/nerrad567/tankbot-core/internal/command"
)

// mockInvoker records invocations and rejects names outside a fixed set.
type mockInvoker struct {
	mu      sync.Mutex
	names   []command.Name
	sources []string
	fail    error
}

func (m *mockInvoker) Invoke(ctx context.Context, name command.Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := command.DefaultTable().Lookup(name); !ok {
		return fmt.Errorf("%w: %s", command.ErrUnknownCommand, name)
	}
	if m.fail != nil {
		return m.fail
	}
	m.names = append(m.names, name)
	m.sources = append(m.sources, command.SourceFrom(ctx))
	return nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveDispatch(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

// scriptedReceive delivers messages once and then blocks until ctx ends.
func scriptedReceive(msgs ...valkey.PubSubMessage) ReceiveFunc {
	return func(ctx context.Context, _ string, fn func(valkey.PubSubMessage)) error {
		for _, m := range msgs {
			fn(m)
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestSubscriber_HandlesMessages(t *testing.T) {
	const ch = "tankbot-commands"
	inv := &mockInvoker{}
	obs := &countingObserver{}
	sub := NewSubscriber(ch, scriptedReceive(
		valkey.PubSubMessage{Channel: ch, Message: `{"type":"GoForward"}`},
		valkey.PubSubMessage{Channel: ch, Message: `{"type":"Catch","parameters":{"speed":2}}`},
		valkey.PubSubMessage{Channel: ch, Message: `{"type":"Jump"}`},
		valkey.PubSubMessage{Channel: ch, Message: `not json`},
		valkey.PubSubMessage{Channel: ch, Message: `{}`},
		valkey.PubSubMessage{Channel: "other", Message: `{"type":"Dance"}`},
	), inv, obs, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := sub.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want DeadlineExceeded", err)
	}

	if len(inv.names) != 2 || inv.names[0] != command.GoForward || inv.names[1] != command.Catch {
		t.Errorf("invoked = %v, want [GoForward Catch]", inv.names)
	}
	for _, s := range inv.sources {
		if s != Source {
			t.Errorf("source = %q, want %q", s, Source)
		}
	}
	want := map[string]int{"invoked": 2, "unknown": 1, "malformed": 2}
	for k, v := range want {
		if obs.counts[k] != v {
			t.Errorf("%s = %d, want %d", k, obs.counts[k], v)
		}
	}
}

func TestSubscriber_InvokerFailure(t *testing.T) {
	const ch = "c"
	inv := &mockInvoker{fail: errors.New("boom")}
	obs := &countingObserver{}
	sub := NewSubscriber(ch, scriptedReceive(valkey.PubSubMessage{Channel: ch, Message: `{"type":"Dance"}`}), inv, obs, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = sub.Run(ctx)

	if obs.counts["failed"] != 1 {
		t.Errorf("failed = %d, want 1", obs.counts["failed"])
	}
}

func TestSubscriber_RetryBackoff(t *testing.T) {
	attempts := 0
	receive := func(context.Context, string, func(valkey.PubSubMessage)) error {
		attempts++
		return errors.New("connection refused")
	}
	sub := NewSubscriber("c", receive, &mockInvoker{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	sub.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 11 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	if err := sub.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want Canceled", err)
	}

	want := []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
		800 * time.Millisecond, 1600 * time.Millisecond, 3200 * time.Millisecond,
		6400 * time.Millisecond, 12800 * time.Millisecond, 25600 * time.Millisecond,
		30 * time.Second, 30 * time.Second,
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
	if attempts != 11 {
		t.Errorf("attempts = %d, want 11", attempts)
	}
}

func TestSubscriber_CleanReturnResetsBackoff(t *testing.T) {
	calls := 0
	receive := func(context.Context, string, func(valkey.PubSubMessage)) error {
		calls++
		if calls%2 == 1 {
			return errors.New("dropped")
		}
		return nil
	}
	sub := NewSubscriber("c", receive, &mockInvoker{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	sub.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 4 {
			cancel()
			return context.Canceled
		}
		return nil
	}
	_ = sub.Run(ctx)

	for i, d := range delays {
		if d != initialRetryDelay {
			t.Errorf("delay[%d] = %v, want %v", i, d, initialRetryDelay)
		}
	}
}
