package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/session"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memRepo) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error)     { return &ListResult{}, nil }
func (m *memRepo) RecordState(context.Context, session.State) error      { return nil }
func (m *memRepo) ListStates(context.Context, int) ([]StateEvent, error) { return nil, nil }

func (m *memRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type warnCounter struct {
	mu sync.Mutex
	n  int
}

func (w *warnCounter) Warn(string, ...any) {
	w.mu.Lock()
	w.n++
	w.mu.Unlock()
}

func TestAsyncWriter_DrainsOnCancel(t *testing.T) {
	repo := &memRepo{}
	w := NewAsyncWriter(repo, 0, nil)

	for i := 0; i < 3; i++ {
		w.Record(context.Background(), command.Outcome{Command: command.Dance, Payload: "dance", Result: command.ResultPublished})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if repo.len() != 3 {
		t.Errorf("entries = %d, want 3", repo.len())
	}
	if repo.entries[0].Command != "Dance" || repo.entries[0].Result != "published" {
		t.Errorf("entry = %+v", repo.entries[0])
	}
}

func TestAsyncWriter_WritesWhileRunning(t *testing.T) {
	repo := &memRepo{}
	w := NewAsyncWriter(repo, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Record(context.Background(), command.Outcome{Payload: "left", Result: command.ResultDropped, Reason: "no_session"})

	deadline := time.Now().Add(time.Second)
	for repo.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if repo.len() != 1 || repo.entries[0].Reason != "no_session" {
		t.Errorf("entries = %+v", repo.entries)
	}
}

func TestAsyncWriter_FullQueueDrops(t *testing.T) {
	repo := &memRepo{}
	logs := &warnCounter{}
	w := NewAsyncWriter(repo, 1, logs)

	w.Record(context.Background(), command.Outcome{Payload: "a"})
	w.Record(context.Background(), command.Outcome{Payload: "b"})

	if logs.n != 1 {
		t.Errorf("warnings = %d, want 1", logs.n)
	}
}

func TestAsyncWriter_WriteErrorLogged(t *testing.T) {
	repo := &memRepo{err: errors.New("disk I/O error")}
	logs := &warnCounter{}
	w := NewAsyncWriter(repo, 1, logs)

	w.Record(context.Background(), command.Outcome{Payload: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if logs.n != 1 {
		t.Errorf("warnings = %d, want 1", logs.n)
	}
}
