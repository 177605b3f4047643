package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subscribe registers handler for topic, which may contain + and # wildcards.
// The subscription is remembered and replayed after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.guard(handler))
	err := waitToken(token, ErrSubscribeFailed)
	if err != nil {
		c.forget(topic)
	}
	return err
}

// Unsubscribe drops the subscription registered for exactly topic.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.forget(topic)
	return waitToken(c.client.Unsubscribe(topic), ErrSubscribeFailed)
}

// HasSubscription reports whether topic is tracked for replay.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// Event is one decoded message seen by Watch. Exactly one of Task and
// Document is set.
type Event struct {
	Topic    string
	Task     *TaskEvent
	Document *DocumentEvent
}

// Watch subscribes to the task and document event streams under the
// client's prefix and calls fn with every decoded event. Messages that do not
// decode are reported to the client logger and skipped.
func (c *Client) Watch(qos byte, fn func(Event)) error {
	taskPrefix := strings.TrimSuffix(c.topics.AnyTaskCompleted(), "+")

	handler := func(topic string, payload []byte) error {
		ev := Event{Topic: topic}
		var target any
		if strings.HasPrefix(topic, taskPrefix) {
			ev.Task = &TaskEvent{}
			target = ev.Task
		} else {
			ev.Document = &DocumentEvent{}
			target = ev.Document
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decoding event: %w", err)
		}
		fn(ev)
		return nil
	}

	for _, topic := range []string{c.topics.AnyTaskCompleted(), c.topics.AnyDocumentChanged()} {
		if err := c.Subscribe(topic, qos, handler); err != nil {
			return err
		}
	}
	return nil
}
