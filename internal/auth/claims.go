package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer   = "cadbridge"
	audience = "cadbridge-admin"

	// defaultTTL applies when a token is minted without a lifetime.
	defaultTTL = time.Hour

	// leeway tolerates clock drift between the minting host and the daemon.
	leeway = 30 * time.Second
)

// Claims is the payload of an admin API token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Signer mints and verifies admin tokens with one HS256 secret.
type Signer struct {
	key    []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewSigner returns a Signer for secret, or ErrNoSecret when it is empty.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{
		key: []byte(secret),
		now: time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}, nil
}

// Issue signs a token naming subject with role, valid for ttl.
func (s *Signer) Issue(subject string, role Role, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	at := s.now()
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(at),
			NotBefore: jwt.NewNumericDate(at),
			ExpiresAt: jwt.NewNumericDate(at.Add(ttl)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry, and that the token
// carries a subject and a known role. Every failure wraps ErrTokenInvalid.
func (s *Signer) Verify(raw string) (*Claims, error) {
	var c Claims
	if _, err := s.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return s.key, nil }); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	switch {
	case c.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	case !c.Role.Valid():
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, c.Role)
	}
	return &c, nil
}
