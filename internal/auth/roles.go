package auth

import "errors"

// Role is the role carried in a token.
type Role string

// Roles, from least to most privileged.
const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Permission represents a named capability on the admin API.
type Permission string

// Permission constants.
const (
	PermStatusRead     Permission = "status:read"
	PermHistoryRead    Permission = "history:read"
	PermAllowListRead  Permission = "allowlist:read"
	PermAllowListWrite Permission = "allowlist:write"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStatusRead,
		PermHistoryRead,
		PermAllowListRead,
	},
	RoleAdmin: {
		PermStatusRead,
		PermHistoryRead,
		PermAllowListRead,
		PermAllowListWrite,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Domain-specific errors for authentication.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrUnknownRole  = errors.New("unknown role")
	ErrNoSecret     = errors.New("no signing secret configured")
)
