package auth

import (
	"context"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/amanazads/flashbites-sub000/models"
)

// ErrAuthenticationFailed is returned for any missing, malformed or invalid
// credential. Callers never learn which; the handshake is simply refused.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Principal represents the authenticated caller from JWT.
type Principal struct {
	UserID int64
	Role   models.Role
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// ParseBearer extracts and validates a "Bearer <token>" header value.
func ParseBearer(header, secret string) (*Principal, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrAuthenticationFailed
	}
	return ParseToken(strings.TrimSpace(parts[1]), secret)
}

// ParseToken validates an HS256 JWT carrying user_id and role claims and
// returns the Principal. The token is decoded exactly once, at handshake.
func ParseToken(tokenStr, secret string) (*Principal, error) {
	if secret == "" || tokenStr == "" {
		return nil, ErrAuthenticationFailed
	}

	type claims struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
		jwt.RegisteredClaims
	}

	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrAuthenticationFailed
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.UserID == 0 {
		return nil, ErrAuthenticationFailed
	}
	role, err := models.ParseRole(c.Role)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return &Principal{UserID: c.UserID, Role: role}, nil
}
