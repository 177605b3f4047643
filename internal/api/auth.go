package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nerrad567/cadbridge/internal/auth"
)

// Permissions checked by the admin routes.
const (
	permAllowListRead  = auth.PermAllowListRead
	permAllowListWrite = auth.PermAllowListWrite
	permHistoryRead    = auth.PermHistoryRead
)

// authMiddleware validates the bearer token on admin routes. Without a
// configured secret the admin surface is disabled.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.signer == nil {
			writeError(w, http.StatusServiceUnavailable, "admin API is disabled: no token secret configured")
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "bearer token required")
			return
		}

		claims, err := s.signer.Verify(token)
		if err != nil {
			s.logger.Warn("admin token rejected", "error", err, "remote_addr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// require rejects callers whose role lacks perm.
func (s *Server) require(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil || !auth.HasPermission(claims.Role, perm) {
				writeError(w, http.StatusForbidden, auth.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// claimsFrom returns the verified token claims, or nil outside admin routes.
func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return c
}
