package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, tokenHandler http.HandlerFunc) *OAuthClient {
	t.Helper()
	srv := httptest.NewServer(tokenHandler)
	t.Cleanup(srv.Close)

	c, err := NewOAuthClient(OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://127.0.0.1:8080/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	})
	require.NoError(t, err)
	return c
}

func TestNewOAuthClient_Validation(t *testing.T) {
	_, err := NewOAuthClient(OAuthConfig{RedirectURL: "http://x"})
	assert.Error(t, err)

	_, err = NewOAuthClient(OAuthConfig{ClientID: "a", ClientSecret: "b"})
	assert.Error(t, err)
}

func TestAuthURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	u, err := url.Parse(c.AuthURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "online", q.Get("access_type"))
	assert.Contains(t, q.Get("scope"), "calendar.readonly")
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestNewState_Unique(t *testing.T) {
	assert.NotEqual(t, NewState(), NewState())
}

func TestExchange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     "header.payload.sig",
		})
	})

	grant, err := c.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "ya29.token", grant.AccessToken)
	assert.Equal(t, "header.payload.sig", grant.IDToken)
	assert.InDelta(t, time.Hour.Seconds(), grant.ExpiresIn.Seconds(), 5)
}

func TestExchange_MissingIDToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.token",
			"token_type":   "Bearer",
		})
	})

	_, err := c.Exchange(context.Background(), "auth-code")
	assert.ErrorIs(t, err, ErrNoIDToken)
}

func TestExchange_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := c.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to exchange auth code")

	_, err = c.Exchange(context.Background(), "")
	assert.Error(t, err)
}
