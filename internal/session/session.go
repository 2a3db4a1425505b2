package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/agendacal/internal/logging"
)

var (
	// ErrNoSession is returned when an operation needs a signed-in user.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidCredential is returned when a sign-in credential cannot be decoded.
	ErrInvalidCredential = errors.New("invalid sign-in credential")

	// ErrTokenInvalid is returned by Check when the identity token is stale or malformed.
	ErrTokenInvalid = errors.New("identity token invalid or expired")

	// ErrBearerExpired is returned by Check when the bearer token has expired.
	ErrBearerExpired = errors.New("bearer token expired")
)

// Identity is the signed-in user.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is one signed-in user and the tokens issued for them.
type Session struct {
	Identity    Identity
	IDToken     string
	BearerToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Bearer returns the token sent to the Calendar API. When no calendar-scoped
// access token has been issued the identity credential is used.
func (s Session) Bearer() string {
	if s.BearerToken != "" {
		return s.BearerToken
	}
	return s.IDToken
}

// Expired reports whether the bearer token's expiry has passed at now.
// A session without a known expiry never expires on this check.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ChangeKind describes a session lifecycle transition.
type ChangeKind string

const (
	ChangeSignIn  ChangeKind = "sign_in"
	ChangeSignOut ChangeKind = "sign_out"
)

// Change is delivered to observers registered with OnChange.
type Change struct {
	Kind       ChangeKind
	Identity   Identity
	Reason     string
	Generation uint64
}

// Manager owns the current session.
type Manager struct {
	mu         sync.RWMutex
	current    *Session
	generation uint64
	observers  []func(Change)

	guard  *Guard
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager that validates sessions with guard.
// A nil guard gets a default Guard.
func NewManager(guard *Guard, logger *slog.Logger) *Manager {
	if guard == nil {
		guard = NewGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		guard:  guard,
		now:    guard.now,
		logger: logging.WithOperation(logger, "session"),
	}
}

// OnChange registers fn to be called after every sign-in and sign-out.
func (m *Manager) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// SignIn replaces any current session with one built from an identity
// credential.
func (m *Manager) SignIn(credential string) (Session, error) {
	claims, err := DecodeClaims(credential)
	if err != nil {
		m.logger.Warn("sign-in rejected", logging.Err(err))
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	s := Session{
		Identity:  Identity{Name: claims.Name, Email: claims.Email},
		IDToken:   credential,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.current = &s
	m.generation++
	change := Change{Kind: ChangeSignIn, Identity: s.Identity, Generation: m.generation}
	observers := append([]func(Change){}, m.observers...)
	m.mu.Unlock()

	m.logger.Info("signed in", logging.UserHash(s.Identity.Email))
	notify(observers, change)
	return s, nil
}

// SetAccessToken attaches a calendar-scoped bearer token to the current
// session. A non-positive expiresIn leaves the expiry unknown.
func (m *Manager) SetAccessToken(accessToken string, expiresIn time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoSession
	}
	m.current.BearerToken = accessToken
	m.current.ExpiresAt = time.Time{}
	if expiresIn > 0 {
		m.current.ExpiresAt = m.now().Add(expiresIn)
	}
	return nil
}

// Current returns a copy of the current session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Generation returns a number that changes whenever a session is created or
// destroyed.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Check runs the guard against s and verifies the bearer token expiry.
func (m *Manager) Check(s Session) error {
	if !m.guard.Valid(s.IDToken) {
		return ErrTokenInvalid
	}
	if s.Expired(m.now()) {
		return ErrBearerExpired
	}
	return nil
}

// Logout destroys the current session. It is a no-op without one.
func (m *Manager) Logout(reason string) {
	m.logout(0, reason)
}

// logout clears the session; a non-zero generation must still match.
func (m *Manager) logout(generation uint64, reason string) bool {
	m.mu.Lock()
	if m.current == nil || (generation != 0 && m.generation != generation) {
		m.mu.Unlock()
		return false
	}
	identity := m.current.Identity
	m.current = nil
	m.generation++
	change := Change{Kind: ChangeSignOut, Identity: identity, Reason: reason, Generation: m.generation}
	observers := append([]func(Change){}, m.observers...)
	m.mu.Unlock()

	m.logger.Info("signed out", logging.UserHash(identity.Email), slog.String("reason", reason))
	notify(observers, change)
	return true
}

// Expire destroys the current session only if it still belongs to
// generation. It reports whether a session was destroyed.
func (m *Manager) Expire(generation uint64, reason string) bool {
	if generation == 0 {
		return false
	}
	return m.logout(generation, reason)
}

func notify(observers []func(Change), change Change) {
	for _, fn := range observers {
		fn(change)
	}
}
