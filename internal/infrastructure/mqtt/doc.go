// Package mqtt carries cadbridge events over an MQTT broker.
//
// The daemon's session owns a retained status document and publishes, via
// EventPublisher, one JSON event per pump task and per successful mutation:
//
//	cadbridge/status                      retained online/offline Status
//	cadbridge/task/completed/{method}     TaskEvent
//	cadbridge/document/changed/{document} DocumentEvent
//
// The prefix comes from mqtt.topic_prefix. EventPublisher only enqueues
// from the pump's goroutine; a background loop does the network I/O.
//
// `cadbridge watch` opens a second, listen-only session with
// ConnectWatcher and follows both event streams through Client.Watch.
package mqtt
