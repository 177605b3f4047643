package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/cadbridge/internal/bridge"
	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
	"github.com/nerrad567/cadbridge/internal/infrastructure/logging"
)

// Event streams a /ws peer can follow. A stream may be narrowed to one
// method or document with a ":<name>" suffix, e.g. "document.changed:Part".
const (
	StreamTaskCompleted   = "task.completed"
	StreamDocumentChanged = "document.changed"
)

// Frame kinds written to /ws peers.
const (
	FrameAck   = "ack"
	FrameEvent = "event"
	FramePong  = "pong"
	FrameError = "error"
)

const wsPeerBuffer = 256

// WSFrame is every message the hub writes.
type WSFrame struct {
	Kind    string   `json:"kind"`
	ID      string   `json:"id,omitempty"`
	Stream  string   `json:"stream,omitempty"`
	Subject string   `json:"subject,omitempty"`
	At      string   `json:"at,omitempty"`
	Data    any      `json:"data,omitempty"`
	Follows []string `json:"follows,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// WSRequest is what a peer sends: op is follow, unfollow or ping.
type WSRequest struct {
	Op      string   `json:"op"`
	ID      string   `json:"id,omitempty"`
	Streams []string `json:"streams,omitempty"`
}

// TaskCompletedData is the event data on task.completed.
type TaskCompletedData struct {
	TaskID     string `json:"task_id"`
	Method     string `json:"method"`
	Succeeded  bool   `json:"succeeded"`
	Message    string `json:"message,omitempty"`
	Abandoned  bool   `json:"abandoned,omitempty"`
	DurationUS int64  `json:"duration_us"`
}

// DocumentChangedData is the event data on document.changed.
type DocumentChangedData struct {
	Document string `json:"document"`
	Method   string `json:"method"`
}

var errUnknownStream = errors.New("unknown stream")

// parseStream splits "stream[:subject]" and rejects unknown streams.
func parseStream(s string) (stream, subject string, err error) {
	stream, subject, _ = strings.Cut(strings.TrimSpace(s), ":")
	switch stream {
	case StreamTaskCompleted, StreamDocumentChanged:
		return stream, subject, nil
	}
	return "", "", errUnknownStream
}

// Hub fans pump completions and document changes out to /ws peers. It is a
// bridge.Observer and an operations change notifier; both only enqueue.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	dropped atomic.Uint64

	mu    sync.RWMutex
	peers map[*wsPeer]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Peers are already vetted by the allow-list and CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub returns an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{cfg: cfg, logger: logger, peers: make(map[*wsPeer]struct{})}
}

// Run blocks until ctx ends, then disconnects every peer.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*wsPeer]struct{})
	h.mu.Unlock()
	for p := range peers {
		p.shutdown()
	}
}

// PeerCount returns the number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Dropped counts frames discarded because a peer's buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// TaskCompleted implements bridge.Observer.
func (h *Hub) TaskCompleted(rec bridge.Record, _ bridge.Outcome) {
	h.publish(StreamTaskCompleted, rec.Method, TaskCompletedData{
		TaskID:     rec.TaskID,
		Method:     rec.Method,
		Succeeded:  rec.Succeeded,
		Message:    rec.Message,
		Abandoned:  rec.Abandoned,
		DurationUS: rec.Duration().Microseconds(),
	})
}

// DocumentChanged broadcasts a successful mutation of document.
func (h *Hub) DocumentChanged(document, method string) {
	h.publish(StreamDocumentChanged, document, DocumentChangedData{Document: document, Method: method})
}

func (h *Hub) publish(stream, subject string, data any) {
	frame, err := json.Marshal(WSFrame{
		Kind:    FrameEvent,
		Stream:  stream,
		Subject: subject,
		At:      time.Now().UTC().Format(time.RFC3339Nano),
		Data:    data,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "stream", stream, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		if p.follows(stream, subject) && !p.enqueue(frame) {
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) add(p *wsPeer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.logger.Debug("websocket peer connected", "remote", p.remote, "peers", n)
}

func (h *Hub) remove(p *wsPeer) {
	h.mu.Lock()
	delete(h.peers, p)
	n := len(h.peers)
	h.mu.Unlock()
	p.shutdown()
	h.logger.Debug("websocket peer disconnected", "remote", p.remote, "peers", n)
}

// handleWebSocket upgrades /ws. Initial streams may be given as
// ?follow=task.completed,document.changed:Part.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var initial []string
	if q := r.URL.Query().Get("follow"); q != "" {
		initial = strings.Split(q, ",")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &wsPeer{
		hub:     s.hub,
		conn:    conn,
		remote:  r.RemoteAddr,
		out:     make(chan []byte, wsPeerBuffer),
		streams: make(map[string]struct{}),
	}
	s.hub.add(p)
	if len(initial) > 0 {
		p.handle(WSRequest{Op: "follow", Streams: initial})
	}

	go p.writeLoop(s.wsCfg)
	go p.readLoop(s.wsCfg)
}

// wsPeer is one /ws connection. out is closed exactly once, by shutdown.
type wsPeer struct {
	hub    *Hub
	conn   *websocket.Conn
	remote string
	out    chan []byte

	mu      sync.Mutex
	closed  bool
	streams map[string]struct{} // "stream" or "stream:subject"
}

func (p *wsPeer) follows(stream, subject string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.streams[stream]; ok {
		return true
	}
	_, ok := p.streams[stream+":"+subject]
	return ok
}

// enqueue reports false when the frame was dropped for a full buffer.
// Frames for a closed peer are discarded silently.
func (p *wsPeer) enqueue(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	select {
	case p.out <- frame:
		return true
	default:
		return false
	}
}

func (p *wsPeer) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.out)
}

func (p *wsPeer) reply(f WSFrame) {
	f.At = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(f)
	if err == nil {
		p.enqueue(data)
	}
}

func (p *wsPeer) handle(req WSRequest) {
	switch req.Op {
	case "ping":
		p.reply(WSFrame{Kind: FramePong, ID: req.ID})
	case "follow", "unfollow":
		keys := make([]string, 0, len(req.Streams))
		for _, s := range req.Streams {
			stream, subject, err := parseStream(s)
			if err != nil {
				p.reply(WSFrame{Kind: FrameError, ID: req.ID, Error: "unknown stream: " + s})
				return
			}
			if subject != "" {
				stream += ":" + subject
			}
			keys = append(keys, stream)
		}

		p.mu.Lock()
		for _, k := range keys {
			if req.Op == "follow" {
				p.streams[k] = struct{}{}
			} else {
				delete(p.streams, k)
			}
		}
		follows := make([]string, 0, len(p.streams))
		for k := range p.streams {
			follows = append(follows, k)
		}
		p.mu.Unlock()

		p.reply(WSFrame{Kind: FrameAck, ID: req.ID, Follows: follows})
	default:
		p.reply(WSFrame{Kind: FrameError, ID: req.ID, Error: "unknown op: " + req.Op})
	}
}

func (p *wsPeer) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		p.hub.remove(p)
		p.conn.Close() //nolint:errcheck,gosec // peer gone
	}()

	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return p.conn.SetReadDeadline(time.Now().Add(idle)) }

	p.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = extend() //nolint:errcheck // best effort
	p.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.hub.logger.Warn("websocket read failed", "remote", p.remote, "error", err)
			}
			return
		}
		_ = extend() //nolint:errcheck // best effort

		var req WSRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			p.reply(WSFrame{Kind: FrameError, Error: "invalid request"})
			continue
		}
		p.handle(req)
	}
}

func (p *wsPeer) writeLoop(cfg config.WebSocketConfig) {
	interval := time.Duration(cfg.PingInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ping := time.NewTicker(interval)
	defer func() {
		ping.Stop()
		p.conn.Close() //nolint:errcheck,gosec // peer gone
	}()
	wait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case frame, ok := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // write reports failure
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // write reports failure
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
