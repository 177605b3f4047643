package access

import (
	"net"
	"sync/atomic"
)

// Logger defines the logging interface used by the filter.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Filter holds the live allow-list.
//
// Thread Safety: all methods are safe for concurrent use. Set takes effect
// for the next connection checked.
type Filter struct {
	list     atomic.Pointer[List]
	logger   Logger
	rejected atomic.Uint64
}

// NewFilter creates a filter from an allow-list string. Skipped entries are
// logged as warnings.
func NewFilter(allowList string, logger Logger) *Filter {
	if logger == nil {
		logger = noopLogger{}
	}
	f := &Filter{logger: logger}
	f.SetString(allowList)
	return f
}

// SetString parses s and swaps it in as the live list.
func (f *Filter) SetString(s string) *List {
	list, warnings := Parse(s)
	for _, w := range warnings {
		f.logger.Warn("skipping allow-list entry", "problem", w)
	}
	f.list.Store(list)
	return list
}

// List returns the live list.
func (f *Filter) List() *List {
	return f.list.Load()
}

// Allow reports whether remote may connect, logging and counting rejections.
func (f *Filter) Allow(remote string) bool {
	if f.list.Load().AllowsRemote(remote) {
		return true
	}
	f.rejected.Add(1)
	f.logger.Warn("rejected connection", "remote_addr", remote)
	return false
}

// Rejected returns the number of peers rejected so far.
func (f *Filter) Rejected() uint64 {
	return f.rejected.Load()
}

// Listener wraps a net.Listener and closes connections from peers the filter
// does not allow. Rejected connections are never returned from Accept.
type Listener struct {
	net.Listener
	filter *Filter
}

// NewListener wraps inner with filter.
func NewListener(inner net.Listener, filter *Filter) *Listener {
	return &Listener{Listener: inner, filter: filter}
}

// Accept returns the next allowed connection.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if l.filter.Allow(conn.RemoteAddr().String()) {
			return conn, nil
		}
		//nolint:errcheck // rejected peer, nothing to report
		conn.Close()
	}
}
