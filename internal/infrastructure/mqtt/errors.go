package mqtt

import "errors"

// Errors returned by the event bus client. Callers match them with errors.Is;
// broker-side causes are wrapped underneath.
var (
	// ErrNotConnected means the client has no live broker session.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed wraps the reason the first connect attempt failed.
	ErrConnectionFailed = errors.New("mqtt: broker connect failed")

	// ErrPublishFailed wraps a failed or timed-out event publish.
	ErrPublishFailed = errors.New("mqtt: event publish failed")

	// ErrSubscribeFailed wraps a failed subscribe or unsubscribe used by Watch.
	ErrSubscribeFailed = errors.New("mqtt: event subscription failed")

	// ErrInvalidQoS rejects QoS values above 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
