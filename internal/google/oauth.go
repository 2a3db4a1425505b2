package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
)

// ErrNoIDToken is returned when a code exchange did not yield an OpenID
// identity token.
var ErrNoIDToken = errors.New("token response did not include an id_token")

// OAuthConfig configures the authorization-code flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to DefaultOAuthScopes.
	Scopes []string

	// Endpoint defaults to Google's OAuth endpoint.
	Endpoint oauth2.Endpoint

	// HTTPClient is used for the token exchange. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Grant is the result of a successful code exchange: the identity credential
// plus a calendar bearer token.
type Grant struct {
	IDToken     string
	AccessToken string
	ExpiresIn   time.Duration
}

// OAuthClient runs the authorization-code flow against Google.
type OAuthClient struct {
	conf       *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// NewOAuthClient creates an OAuthClient.
func NewOAuthClient(cfg OAuthConfig) (*OAuthClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect URL is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OAuthClient{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: cfg.HTTPClient,
		logger:     logging.WithOperation(logger, "oauth"),
		metrics:    cfg.Metrics,
		now:        time.Now,
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	return uuid.NewString()
}

// AuthURL returns the consent page URL for state.
func (c *OAuthClient) AuthURL(state string) string {
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a Grant.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*Grant, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationTokenExchange)
	defer span.End()
	start := time.Now()

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	grant, err := c.exchange(ctx, code)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, instrumentation.OperationTokenExchange, status, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("token exchange failed", logging.Err(err))
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return grant, nil
}

func (c *OAuthClient) exchange(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}

	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, ErrNoIDToken
	}

	grant := &Grant{IDToken: idToken, AccessToken: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		grant.ExpiresIn = tok.Expiry.Sub(c.now()).Round(time.Second)
	}
	return grant, nil
}
