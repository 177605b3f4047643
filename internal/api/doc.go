// Package api is the network face of cadbridge.
//
// It serves, on one listener:
//   - POST /rpc: JSON-RPC 2.0 dispatch into the operations registry
//   - GET /api/v1/health: liveness, version and queue depth
//   - /api/v1/admin/*: allow-list administration, behind an admin token
//   - GET /ws: WebSocket event stream (task.completed, document.changed)
//   - GET /metrics: Prometheus exposition
//
// # Access control
//
// Every inbound connection is checked against the address allow-list before
// any request is read: the listener closes rejected peers on accept, and a
// middleware re-checks the request's remote address and drops the connection
// without writing a response. No method runs and no envelope is produced for
// a rejected peer.
//
// # Replies
//
// Application methods answer with an envelope inside the JSON-RPC result.
// Unknown methods and malformed parameters are JSON-RPC errors.
package api
