package bridge

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// TaskFunc is the body of a task. It runs on the pump goroutine with
// exclusive access to engine state and returns the success payload.
type TaskFunc func(st *engine.State) (any, error)

// Outcome is the terminal result of a task.
type Outcome struct {
	Succeeded bool
	Value     any
	Message   string
}

// Success builds a successful Outcome.
func Success(value any) Outcome {
	return Outcome{Succeeded: true, Value: value}
}

// Failure builds a failed Outcome.
func Failure(message string) Outcome {
	return Outcome{Message: message}
}

// Task is one queued unit of work. It is immutable once created apart from
// the abandoned flag, which the submitting caller sets when it stops waiting.
type Task struct {
	ID         string
	Method     string
	EnqueuedAt time.Time

	run       TaskFunc
	reply     chan Outcome
	abandoned atomic.Bool
}

// NewTask creates a task for method. The reply slot holds exactly one Outcome
// so delivery never blocks the pump.
func NewTask(method string, run TaskFunc) *Task {
	return &Task{
		ID:     uuid.NewString(),
		Method: method,
		run:    run,
		reply:  make(chan Outcome, 1),
	}
}

// Abandoned reports whether the submitter gave up waiting.
func (t *Task) Abandoned() bool {
	return t.abandoned.Load()
}

// Record describes a completed task. Observers receive one per task.
type Record struct {
	TaskID     string
	Method     string
	Succeeded  bool
	Message    string
	Abandoned  bool
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the time the task spent running.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// QueueWait is the time the task spent queued.
func (r Record) QueueWait() time.Duration {
	return r.StartedAt.Sub(r.EnqueuedAt)
}
