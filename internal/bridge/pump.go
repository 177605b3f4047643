package bridge

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// DefaultTickInterval is the pump's period when none is configured.
const DefaultTickInterval = 500 * time.Millisecond

// Observer is notified after each task's Outcome has been delivered.
// Observers run on the pump goroutine and must not block for long.
type Observer interface {
	TaskCompleted(rec Record, outcome Outcome)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(rec Record, outcome Outcome)

// TaskCompleted calls f.
func (f ObserverFunc) TaskCompleted(rec Record, outcome Outcome) {
	f(rec, outcome)
}

// PumpConfig holds pump settings.
type PumpConfig struct {
	// TickInterval is the fixed wake-up period.
	TickInterval time.Duration
	// NotifyOnEnqueue also wakes the pump on every enqueue, so a task does not
	// wait for the next tick.
	NotifyOnEnqueue bool
}

// Pump is the single consumer of the queue and the only writer of engine state.
type Pump struct {
	store  *engine.Store
	queue  *Queue
	cfg    PumpConfig
	logger Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewPump creates a pump draining queue into store.
func NewPump(store *engine.Store, queue *Queue, cfg PumpConfig) *Pump {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Pump{
		store:  store,
		queue:  queue,
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the pump.
func (p *Pump) SetLogger(logger Logger) {
	p.logger = logger
}

// AddObserver registers an observer for completed tasks.
func (p *Pump) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Run drives the pump until ctx is done. Tasks still queued at shutdown are
// drained once more so every queued task gets its Outcome.
//
// Run must be called from exactly one goroutine.
func (p *Pump) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	var notify <-chan struct{}
	if p.cfg.NotifyOnEnqueue {
		notify = p.queue.Notify()
	}

	p.logger.Info("mutation pump started",
		"tick_interval", p.cfg.TickInterval,
		"notify_on_enqueue", p.cfg.NotifyOnEnqueue,
	)

	for {
		select {
		case <-ctx.Done():
			if n := p.Tick(); n > 0 {
				p.logger.Info("drained tasks at shutdown", "count", n)
			}
			p.logger.Info("mutation pump stopped")
			return ErrPumpStopped
		case <-ticker.C:
			p.Tick()
		case <-notify:
			p.Tick()
		}
	}
}

// Tick drains the queue once and runs every drained task in order. It
// returns the number of tasks run.
//
// Tick is exported for tests and for hosts that drive the pump from their
// own loop. It must never be called concurrently with Run or itself.
func (p *Pump) Tick() int {
	tasks := p.queue.Drain()
	for _, t := range tasks {
		p.execute(t)
	}
	return len(tasks)
}

func (p *Pump) execute(t *Task) {
	started := time.Now()
	outcome := p.run(t)
	finished := time.Now()

	t.reply <- outcome

	rec := Record{
		TaskID:     t.ID,
		Method:     t.Method,
		Succeeded:  outcome.Succeeded,
		Message:    outcome.Message,
		Abandoned:  t.Abandoned(),
		EnqueuedAt: t.EnqueuedAt,
		StartedAt:  started,
		FinishedAt: finished,
	}

	p.logger.Debug("task completed",
		"task_id", t.ID,
		"method", t.Method,
		"succeeded", outcome.Succeeded,
		"duration", rec.Duration(),
	)

	p.mu.RLock()
	observers := p.observers
	p.mu.RUnlock()
	for _, o := range observers {
		p.notify(o, rec, outcome)
	}
}

// run executes the task body inside the store's exclusive section and
// converts errors and panics into failure Outcomes.
func (p *Pump) run(t *Task) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"task_id", t.ID,
				"method", t.Method,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			outcome = Failure(fmt.Sprintf("%s failed: %v", t.Method, r))
		}
	}()

	var value any
	err := p.store.Exclusive(func(st *engine.State) error {
		var runErr error
		value, runErr = t.run(st)
		return runErr
	})
	if err != nil {
		return Failure(err.Error())
	}
	return Success(value)
}

func (p *Pump) notify(o Observer, rec Record, outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task observer panicked", "task_id", rec.TaskID, "panic", r)
		}
	}()
	o.TaskCompleted(rec, outcome)
}
