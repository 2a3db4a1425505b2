package session

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.June, 8, 12, 0, 0, 0, time.UTC)

func mintToken(t *testing.T, issuedAt, expiresAt time.Time) string {
	t.Helper()
	claims := IdentityClaims{
		Name:  "Test User",
		Email: "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newTestGuard() *Guard {
	return NewGuard(WithClock(func() time.Time { return fixedNow }))
}

func TestGuard_Valid(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  bool
	}{
		{
			name:  "fresh token",
			token: func(t *testing.T) string { return mintToken(t, fixedNow.Add(-time.Minute), fixedNow.Add(time.Hour)) },
			want:  true,
		},
		{
			name:  "expired token",
			token: func(t *testing.T) string { return mintToken(t, fixedNow.Add(-2*time.Hour), fixedNow.Add(-time.Hour)) },
			want:  false,
		},
		{
			name:  "expires exactly now",
			token: func(t *testing.T) string { return mintToken(t, fixedNow.Add(-time.Hour), fixedNow) },
			want:  false,
		},
		{
			name:  "issued in the future",
			token: func(t *testing.T) string { return mintToken(t, fixedNow.Add(time.Hour), fixedNow.Add(2*time.Hour)) },
			want:  false,
		},
		{
			name: "missing iat",
			token: func(t *testing.T) string {
				claims := IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))}}
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
				require.NoError(t, err)
				return s
			},
			want: false,
		},
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "test-token" },
			want:  false,
		},
		{
			name:  "three segments of junk",
			token: func(t *testing.T) string { return "a.b.c" },
			want:  false,
		},
		{
			name:  "empty",
			token: func(t *testing.T) string { return "" },
			want:  false,
		},
	}

	guard := newTestGuard()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token(t)
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, guard.Valid(token))
			})
		})
	}
}

func TestDecodeClaims(t *testing.T) {
	token := mintToken(t, fixedNow, fixedNow.Add(time.Hour))

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, "test@example.com", claims.Email)

	_, err = DecodeClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestManager_SignInAndLogout(t *testing.T) {
	m := NewManager(newTestGuard(), nil)

	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), m.Generation())

	s, err := m.SignIn(mintToken(t, fixedNow, fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "Test User", s.Identity.Name)
	assert.Equal(t, uint64(1), m.Generation())

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, s.IDToken, current.Bearer())

	m.Logout("user request")
	_, ok = m.Current()
	assert.False(t, ok)
	assert.Equal(t, uint64(2), m.Generation())

	// Second logout is a no-op.
	m.Logout("again")
	assert.Equal(t, uint64(2), m.Generation())

	require.Len(t, changes, 2)
	assert.Equal(t, ChangeSignIn, changes[0].Kind)
	assert.Equal(t, ChangeSignOut, changes[1].Kind)
	assert.Equal(t, "user request", changes[1].Reason)
}

func TestManager_SignInRejectsGarbage(t *testing.T) {
	m := NewManager(newTestGuard(), nil)

	_, err := m.SignIn("test-token")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, uint64(0), m.Generation())
}

func TestManager_SetAccessToken(t *testing.T) {
	m := NewManager(newTestGuard(), nil)

	assert.ErrorIs(t, m.SetAccessToken("ya29.token", time.Hour), ErrNoSession)

	_, err := m.SignIn(mintToken(t, fixedNow, fixedNow.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, m.SetAccessToken("ya29.token", time.Hour))

	s, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "ya29.token", s.Bearer())
	assert.Equal(t, fixedNow.Add(time.Hour), s.ExpiresAt)
}

func TestManager_Check(t *testing.T) {
	m := NewManager(newTestGuard(), nil)

	fresh := Session{IDToken: mintToken(t, fixedNow, fixedNow.Add(time.Hour))}
	assert.NoError(t, m.Check(fresh))

	stale := Session{IDToken: mintToken(t, fixedNow.Add(-2*time.Hour), fixedNow.Add(-time.Hour))}
	assert.ErrorIs(t, m.Check(stale), ErrTokenInvalid)

	bearerGone := fresh
	bearerGone.BearerToken = "ya29.token"
	bearerGone.ExpiresAt = fixedNow.Add(-time.Second)
	assert.ErrorIs(t, m.Check(bearerGone), ErrBearerExpired)
}

func TestManager_Expire(t *testing.T) {
	m := NewManager(newTestGuard(), nil)
	token := mintToken(t, fixedNow, fixedNow.Add(time.Hour))

	assert.False(t, m.Expire(0, "nothing to expire"))

	_, err := m.SignIn(token)
	require.NoError(t, err)
	stale := m.Generation()

	// A newer sign-in must survive an expiry aimed at the old one.
	_, err = m.SignIn(token)
	require.NoError(t, err)
	assert.False(t, m.Expire(stale, "stale run"))
	_, ok := m.Current()
	assert.True(t, ok)

	assert.True(t, m.Expire(m.Generation(), "token expired"))
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(newTestGuard(), nil)
	token := mintToken(t, fixedNow, fixedNow.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = m.SignIn(token)
			} else {
				m.Logout("race")
			}
			_, _ = m.Current()
			_ = m.Generation()
		}(i)
	}
	wg.Wait()
}
