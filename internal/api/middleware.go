package api

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyClaims    contextKey = "claims"
)

// maxAdminBodyBytes caps admin REST bodies. /rpc applies its own limit.
const maxAdminBodyBytes = 64 << 10

// accessMiddleware re-checks the peer against the live allow-list, which an
// admin may have narrowed since the listener accepted the connection. A
// rejected peer's connection is closed without a response.
func (s *Server) accessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.filter.Allow(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		if s.metrics != nil {
			s.metrics.rejected.Inc()
		}
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close() //nolint:errcheck,gosec // rejected peer
				return
			}
		}
		// net/http drops the connection without writing a response.
		panic(http.ErrAbortHandler)
	})
}

// traceMiddleware tags the request with an ID, recovers handler panics and
// logs one line per request. Successful /rpc calls log at debug because MCP
// clients poll; everything else logs at info, server errors at warn.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(p)
				}
				s.logger.Error("handler panic", "panic", p, "path", r.URL.Path, "request_id", id)
				writeError(sw, http.StatusInternalServerError, "internal server error")
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"remote", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", id,
			}
			switch {
			case sw.status >= http.StatusInternalServerError:
				s.logger.Warn("http request", args...)
			case r.URL.Path == "/rpc" && sw.status == http.StatusOK:
				s.logger.Debug("http request", args...)
			default:
				s.logger.Info("http request", args...)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

// corsMiddleware lets browser dashboards call the admin API and open /ws.
// An empty allowed_origins list accepts any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	methods := listOr(s.cfg.CORS.AllowedMethods, "GET, POST, PUT, OPTIONS")
	headers := listOr(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	allowed := s.cfg.CORS.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func limitAdminBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxAdminBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status code while staying hijackable for /ws.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func listOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
