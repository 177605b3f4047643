package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "cadbridge"

// Topics builds cadbridge topic names under a prefix.
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix.
// Surrounding slashes are trimmed; an empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Status returns the retained daemon status topic, also used for the LWT.
//
// Example: cadbridge/status
func (t Topics) Status() string {
	return t.Prefix() + "/status"
}

// TaskCompleted returns the topic for a completed task of method.
//
// Example: cadbridge/task/completed/create_object
func (t Topics) TaskCompleted(method string) string {
	return t.Prefix() + "/task/completed/" + segment(method)
}

// DocumentChanged returns the topic for mutations of document.
//
// Example: cadbridge/document/changed/Part
func (t Topics) DocumentChanged(document string) string {
	return t.Prefix() + "/document/changed/" + segment(document)
}

// AnyTaskCompleted matches TaskCompleted for every method.
func (t Topics) AnyTaskCompleted() string {
	return t.Prefix() + "/task/completed/+"
}

// AnyDocumentChanged matches DocumentChanged for every document.
func (t Topics) AnyDocumentChanged() string {
	return t.Prefix() + "/document/changed/+"
}

// All returns a wildcard matching every cadbridge topic.
func (t Topics) All() string {
	return t.Prefix() + "/#"
}

// segment makes s safe as a single topic level. MQTT wildcards and the level
// separator are replaced, and an empty value becomes "_".
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
