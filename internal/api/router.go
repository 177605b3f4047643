package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter mounts every endpoint behind the shared middleware. The
// access check comes first so a rejected peer never reaches logging.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.accessMiddleware, s.traceMiddleware, s.corsMiddleware)

	r.With(s.rateLimitMiddleware).Post("/rpc", s.handleRPC)
	if s.hub != nil {
		r.Get("/ws", s.handleWebSocket)
	}
	if path, ok := s.metricsPath(); ok {
		r.Handle(path, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Get("/api/v1/health", s.handleHealth)
	r.Route("/api/v1/admin", s.adminRoutes)
	return r
}

func (s *Server) metricsPath() (string, bool) {
	if s.metrics == nil || !s.metricsCfg.Enabled {
		return "", false
	}
	if s.metricsCfg.Path == "" {
		return "/metrics", true
	}
	return s.metricsCfg.Path, true
}

// adminRoutes are token-guarded; each route names the permission it needs.
func (s *Server) adminRoutes(r chi.Router) {
	r.Use(limitAdminBody, s.authMiddleware)

	r.With(s.require(permAllowListRead)).Get("/allowlist", s.handleGetAllowList)
	r.With(s.require(permAllowListWrite)).Put("/allowlist", s.handleSetAllowList)
	r.With(s.require(permHistoryRead)).Get("/events", s.handleListAdminEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"queue_depth":    s.queueDepth(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}
