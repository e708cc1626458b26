package audit

import (
	"context"

	"github.com/nerrad567/tankbot-core/internal/command"
)

// defaultQueueSize is the buffer of the async writer. Outcomes beyond it
// are dropped rather than blocking the publisher.
const defaultQueueSize = 256

// AsyncWriter queues command outcomes and writes them serially from Run,
// keeping SQLite off the invoking goroutine.
type AsyncWriter struct {
	repo   Repository
	queue  chan command.Outcome
	logger Logger
}

// NewAsyncWriter creates a writer in front of repo. size <= 0 uses the default.
func NewAsyncWriter(repo Repository, size int, logger Logger) *AsyncWriter {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &AsyncWriter{
		repo:   repo,
		queue:  make(chan command.Outcome, size),
		logger: logger,
	}
}

// Record implements command.Recorder. It never blocks.
func (w *AsyncWriter) Record(_ context.Context, o command.Outcome) {
	select {
	case w.queue <- o:
	default:
		w.warn("audit queue full, dropping entry", "payload", o.Payload, "result", string(o.Result))
	}
}

// Run writes queued outcomes until ctx is cancelled, then drains what is
// left before returning.
func (w *AsyncWriter) Run(ctx context.Context) {
	for {
		select {
		case o := <-w.queue:
			w.write(o)
		case <-ctx.Done():
			for {
				select {
				case o := <-w.queue:
					w.write(o)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) write(o command.Outcome) {
	if err := w.repo.Create(context.Background(), entryFrom(o)); err != nil {
		w.warn("audit write failed", "payload", o.Payload, "error", err)
	}
}

func (w *AsyncWriter) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
