// Package operations is the table of methods the bridge exposes to remote
// callers.
//
// Every method is registered once, at construction, with a fixed category:
//
//	Probe     direct, bare value          ping
//	Mutating  queued, envelope            create_object, edit_object, ...
//	ReadOnly  direct, envelope            get_object, list_documents, ...
//	Payload   queued, bare value          get_active_screenshot
//
// Queued methods run on the mutation pump through bridge.Bridge. Direct
// methods read engine state under engine.Store.Read and may observe the
// state between two tasks of the same pump tick.
//
// Transports call Registry.Call with positional parameters decoded from the
// wire. Parameter errors wrap ErrInvalidParams and unknown names return
// ErrMethodNotFound; both are protocol errors, never envelopes.
package operations
