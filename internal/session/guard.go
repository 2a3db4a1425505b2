package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teemow/agendacal/internal/logging"
)

// IdentityClaims are the claims read from a signed identity token.
type IdentityClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// DecodeClaims decodes the payload of a JWT without verifying its signature.
// The issuer has already verified the token; callers only need its claims.
func DecodeClaims(token string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}
	return claims, nil
}

// Guard checks that a token is fresh before it is used for a fetch.
type Guard struct {
	now    func() time.Time
	logger *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// WithGuardLogger sets the logger used to report decode failures.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

// NewGuard creates a Guard using the wall clock and slog.Default().
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Valid reports whether token decodes and satisfies exp > now and iat <= now.
// A token missing either claim is not valid. Valid never panics on bad input.
func (g *Guard) Valid(token string) bool {
	if token == "" {
		return false
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		g.logger.Warn("token decode failed",
			slog.String("token", logging.SanitizeToken(token)),
			logging.Err(err))
		return false
	}

	now := g.now()
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(now) {
		return false
	}
	if claims.IssuedAt == nil || claims.IssuedAt.After(now) {
		return false
	}
	return true
}
