package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Bridge and Pump.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge is the submitting side of the queue pair.
//
// Thread Safety: Submit is safe for concurrent use.
type Bridge struct {
	queue       *Queue
	waitTimeout time.Duration
	logger      Logger
}

// New creates a bridge over queue. A waitTimeout of zero waits until the
// caller's context is done.
func New(queue *Queue, waitTimeout time.Duration) *Bridge {
	return &Bridge{
		queue:       queue,
		waitTimeout: waitTimeout,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Len returns the current queue depth.
func (b *Bridge) Len() int {
	return b.queue.Len()
}

// Submit enqueues a task for method and blocks until its Outcome arrives.
//
// Parameters:
//   - ctx: bounds the wait; cancellation does not withdraw the task
//   - method: the operation name, used in logs, journal entries and the
//     timeout message
//   - run: the task body, executed on the pump goroutine
//
// Returns the task's Outcome, or a failure Outcome "timed out waiting for
// <method>" if the wait ends first. In that case the task still runs once.
func (b *Bridge) Submit(ctx context.Context, method string, run TaskFunc) Outcome {
	task := NewTask(method, run)
	b.queue.Push(task)

	var timeout <-chan time.Time
	if b.waitTimeout > 0 {
		timer := time.NewTimer(b.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case outcome := <-task.reply:
		return outcome
	case <-timeout:
		return b.abandon(task, ErrTimeout)
	case <-ctx.Done():
		return b.abandon(task, ctx.Err())
	}
}

func (b *Bridge) abandon(task *Task, cause error) Outcome {
	task.abandoned.Store(true)

	// The pump may have delivered between the wake-up and the flag store.
	select {
	case outcome := <-task.reply:
		return outcome
	default:
	}

	b.logger.Warn("abandoned wait for task outcome",
		"task_id", task.ID,
		"method", task.Method,
		"cause", cause,
	)
	if errors.Is(cause, context.Canceled) {
		return Failure(fmt.Sprintf("request cancelled while waiting for %s", task.Method))
	}
	return Failure(fmt.Sprintf("timed out waiting for %s", task.Method))
}
