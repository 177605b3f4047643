// Package envelope defines the uniform reply shape of application methods:
//
//	{"success": true,  "data": <payload>, "error": null}
//	{"success": false, "data": null,      "error": "<message>"}
//
// Probe methods and large payload fetches return bare values and never pass
// through this package.
package envelope

import "github.com/nerrad567/cadbridge/internal/bridge"

// Envelope is the reply to an application method.
type Envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
}

// Ok wraps a success payload. A nil payload is allowed.
func Ok(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail wraps an error message.
func Fail(message string) Envelope {
	return Envelope{Error: &message}
}

// FromError wraps err, or an empty success when err is nil.
func FromError(err error) Envelope {
	if err != nil {
		return Fail(err.Error())
	}
	return Ok(nil)
}

// FromOutcome maps a task outcome onto an envelope.
func FromOutcome(o bridge.Outcome) Envelope {
	if o.Succeeded {
		return Ok(o.Value)
	}
	return Fail(o.Message)
}

// Message returns the error message, or "" for a success.
func (e Envelope) Message() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}
