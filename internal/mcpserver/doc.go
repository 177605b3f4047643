// Package mcpserver exposes the bridge to MCP clients.
//
// Every tool forwards to the daemon's JSON-RPC surface through a Bridge
// (normally an *rpcclient.Client) and answers with text content, plus a PNG
// of the active document after object-level calls unless text-only feedback
// is configured.
package mcpserver
