package journal

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/cadbridge/internal/bridge"
)

// recordTimeout bounds a single journal write.
const recordTimeout = 5 * time.Second

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder is a bridge.Observer that writes task records to a Repository
// from its own goroutine, so the pump never waits on the database.
type Recorder struct {
	repo    Repository
	entries chan Entry
	logger  Logger

	wg      sync.WaitGroup
	dropped uint64
	mu      sync.Mutex
}

// NewRecorder creates a recorder buffering up to buffer entries.
func NewRecorder(repo Repository, buffer int, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		repo:    repo,
		entries: make(chan Entry, buffer),
		logger:  logger,
	}
}

// TaskCompleted queues the record for writing. When the buffer is full the
// entry is dropped and counted.
func (r *Recorder) TaskCompleted(rec bridge.Record, _ bridge.Outcome) {
	select {
	case r.entries <- EntryFromRecord(rec):
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn("journal buffer full, dropping entry", "task_id", rec.TaskID, "method", rec.Method)
	}
}

// Dropped returns the number of entries dropped because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Start launches the writer goroutine. It stops when ctx is done, after
// writing whatever is already buffered; Wait blocks until then.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case e := <-r.entries:
				r.write(e)
			case <-ctx.Done():
				for {
					select {
					case e := <-r.entries:
						r.write(e)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the writer goroutine has exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.repo.Record(ctx, &e); err != nil {
		r.logger.Error("failed to record task", "task_id", e.ID, "error", err)
	}
}
