// Package rpcclient calls the bridge's JSON-RPC endpoint over HTTP.
//
// The CLI and the MCP front end use it; both talk to a running daemon.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nerrad567/cadbridge/internal/envelope"
)

// DefaultURL is the daemon's loopback address.
const DefaultURL = "http://127.0.0.1:9875"

const defaultTimeout = 90 * time.Second

// ErrNoResponse is returned when the daemon closes the connection without a
// reply, which is what a peer outside the allow-list sees.
var ErrNoResponse = errors.New("rpcclient: no response from bridge")

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client provides JSON-RPC access to the daemon.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the daemon at baseURL (scheme, host and port).
// An empty baseURL selects DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/rpc",
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Call invokes method with positional params and returns the raw result.
// A JSON-RPC error comes back as *Error.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
			return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
		}
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best effort detail
		return nil, fmt.Errorf("calling %s: HTTP %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}

// CallEnvelope invokes an application method and decodes its envelope.
// A failure envelope is returned without an error; err covers transport and
// protocol problems only.
func (c *Client) CallEnvelope(ctx context.Context, method string, params ...any) (envelope.Envelope, error) {
	raw, err := c.Call(ctx, method, params...)
	if err != nil {
		return envelope.Envelope{}, err
	}
	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope.Envelope{}, fmt.Errorf("decoding %s envelope: %w", method, err)
	}
	return env, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.Call(ctx, "ping")
	if err != nil {
		return err
	}
	if string(raw) != "true" {
		return fmt.Errorf("unexpected ping result %s", raw)
	}
	return nil
}

// Screenshot fetches a PNG of the active document. ok is false when there is
// nothing to render. A zero width or height leaves that axis at the daemon's
// default; negative sizes are rejected.
func (c *Client) Screenshot(ctx context.Context, view string, width, height int) (png []byte, ok bool, err error) {
	if width < 0 || height < 0 {
		return nil, false, fmt.Errorf("screenshot size %dx%d: dimensions must not be negative", width, height)
	}
	var params []any
	switch {
	case width > 0 || height > 0:
		params = []any{view, width, height}
	case view != "":
		params = []any{view}
	}
	raw, err := c.Call(ctx, "get_active_screenshot", params...)
	if err != nil {
		return nil, false, err
	}
	if string(raw) == "null" {
		return nil, false, nil
	}
	// A JSON string decodes into []byte as base64.
	if err := json.Unmarshal(raw, &png); err != nil {
		return nil, false, fmt.Errorf("decoding screenshot: %w", err)
	}
	return png, true, nil
}
