package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nerrad567/cadbridge/internal/access"
	"github.com/nerrad567/cadbridge/internal/journal"
	"github.com/nerrad567/cadbridge/internal/settings"
)

// allowListResponse describes the live allow-list.
type allowListResponse struct {
	AllowedIPs string   `json:"allowed_ips"`
	Entries    []string `json:"entries"`
	Dropped    []string `json:"dropped,omitempty"`
	Rejected   uint64   `json:"rejected_connections"`
}

type setAllowListRequest struct {
	AllowedIPs string `json:"allowed_ips"`
}

func (s *Server) allowListResponse(dropped []string) allowListResponse {
	list := s.filter.List()
	return allowListResponse{
		AllowedIPs: list.String(),
		Entries:    list.Entries(),
		Dropped:    dropped,
		Rejected:   s.filter.Rejected(),
	}
}

// handleGetAllowList returns the allow-list currently enforced.
func (s *Server) handleGetAllowList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.allowListResponse(nil))
}

// handleSetAllowList validates a new allow-list, persists it to the settings
// file and swaps it into the live filter. The change applies to the next
// connection; established keep-alive connections are re-checked per request.
func (s *Server) handleSetAllowList(w http.ResponseWriter, r *http.Request) {
	var req setAllowListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.settingsPath == "" {
		writeError(w, http.StatusServiceUnavailable, "settings store is not configured")
		return
	}

	if _, _, err := access.Normalize(req.AllowedIPs); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var dropped []string
	updated, err := settings.Update(s.settingsPath, func(st *settings.Settings) error {
		var err error
		dropped, err = st.SetAllowList(req.AllowedIPs)
		return err
	})
	if err != nil {
		s.logger.Error("saving allow-list", "error", err)
		writeError(w, http.StatusInternalServerError, "saving settings failed")
		return
	}

	s.filter.SetString(updated.AllowedIPs)

	actor := ""
	if claims := claimsFrom(r.Context()); claims != nil {
		actor = claims.Subject
	}
	s.logger.Info("allow-list updated", "allowed_ips", updated.AllowedIPs, "actor", actor, "dropped", len(dropped))
	s.recordAdminEvent(r, journal.ActionAllowListSet, actor, map[string]any{
		"allowed_ips": updated.AllowedIPs,
		"dropped":     dropped,
	})

	writeJSON(w, http.StatusOK, s.allowListResponse(dropped))
}

// handleListAdminEvents returns recent administrative changes.
func (s *Server) handleListAdminEvents(w http.ResponseWriter, r *http.Request) {
	if s.adminEvents == nil {
		writeError(w, http.StatusServiceUnavailable, "admin event journal is disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // zero selects the default
	events, err := s.adminEvents.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing admin events", "error", err)
		writeError(w, http.StatusInternalServerError, "listing admin events failed")
		return
	}
	if events == nil {
		events = []journal.AdminEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) recordAdminEvent(r *http.Request, action, actor string, details map[string]any) {
	if s.adminEvents == nil {
		return
	}
	ev := &journal.AdminEvent{Action: action, Actor: actor, Source: "api", Details: details}
	if err := s.adminEvents.Create(r.Context(), ev); err != nil {
		s.logger.Warn("recording admin event failed", "action", action, "error", err)
	}
}
