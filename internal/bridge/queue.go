package bridge

import (
	"sync"
	"time"
)

// Queue is the FIFO request queue between submitters and the pump.
//
// All methods are safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	tasks  []*Task
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends a task and signals the pump. Signals coalesce: several pushes
// between two drains wake the pump once.
func (q *Queue) Push(t *Task) {
	q.mu.Lock()
	t.EnqueuedAt = time.Now()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued task in FIFO order. Tasks pushed
// after Drain returns wait for the next drain.
func (q *Queue) Drain() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Notify returns the channel signalled on every push.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
