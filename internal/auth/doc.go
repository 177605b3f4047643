// Package auth issues and verifies the bearer tokens that guard the admin
// API.
//
// There are no user accounts. An operator with access to the daemon's
// configuration mints a token with `cadbridge token`, signed with the
// configured HS256 secret. The token names its subject and a role; the role
// maps statically onto permissions.
package auth
