package mqtt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/cadbridge/internal/bridge"
)

// Publisher is the subset of Client used by EventPublisher.
type Publisher interface {
	PublishJSON(topic string, v any, qos byte) error
}

// TaskEvent is published for every task the pump runs.
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	Method     string    `json:"method"`
	Succeeded  bool      `json:"succeeded"`
	Message    string    `json:"message,omitempty"`
	Abandoned  bool      `json:"abandoned,omitempty"`
	DurationUS int64     `json:"duration_us"`
	FinishedAt time.Time `json:"finished_at"`
}

// DocumentEvent is published after a mutation of a document succeeds.
type DocumentEvent struct {
	Document  string    `json:"document"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

type outgoing struct {
	topic   string
	payload any
}

// EventPublisher forwards pump completions and document changes to MQTT.
//
// It implements bridge.Observer and the operations change notifier. Both
// callbacks only enqueue; a background goroutine started by Start does the
// network I/O. Events are dropped when the buffer is full.
type EventPublisher struct {
	pub    Publisher
	topics Topics
	qos    byte
	logger Logger

	events  chan outgoing
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewEventPublisher creates a publisher with room for buffer pending events.
func NewEventPublisher(pub Publisher, topics Topics, qos byte, buffer int, logger Logger) *EventPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventPublisher{
		pub:    pub,
		topics: topics,
		qos:    qos,
		logger: logger,
		events: make(chan outgoing, buffer),
	}
}

// Start runs the publish loop until ctx is cancelled. Events still buffered
// at cancellation are published before the loop exits.
func (p *EventPublisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case ev := <-p.events:
				p.publish(ev)
			case <-ctx.Done():
				for {
					select {
					case ev := <-p.events:
						p.publish(ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (p *EventPublisher) Wait() {
	p.wg.Wait()
}

// Dropped returns how many events were discarded because the buffer was full.
func (p *EventPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// TaskCompleted implements bridge.Observer.
func (p *EventPublisher) TaskCompleted(rec bridge.Record, _ bridge.Outcome) {
	p.enqueue(p.topics.TaskCompleted(rec.Method), TaskEvent{
		TaskID:     rec.TaskID,
		Method:     rec.Method,
		Succeeded:  rec.Succeeded,
		Message:    rec.Message,
		Abandoned:  rec.Abandoned,
		DurationUS: rec.Duration().Microseconds(),
		FinishedAt: rec.FinishedAt.UTC(),
	})
}

// DocumentChanged publishes a document change event.
func (p *EventPublisher) DocumentChanged(document, method string) {
	p.enqueue(p.topics.DocumentChanged(document), DocumentEvent{
		Document:  document,
		Method:    method,
		Timestamp: time.Now().UTC(),
	})
}

func (p *EventPublisher) enqueue(topic string, payload any) {
	select {
	case p.events <- outgoing{topic: topic, payload: payload}:
	default:
		p.dropped.Add(1)
	}
}

func (p *EventPublisher) publish(ev outgoing) {
	if err := p.pub.PublishJSON(ev.topic, ev.payload, p.qos); err != nil {
		p.logger.Warn("mqtt event publish failed", "topic", ev.topic, "error", err)
	}
}
