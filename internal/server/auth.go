package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/google"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
)

const (
	stateCookieName = "agendacal_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// authHandler drives the Google sign-in redirect flow.
type authHandler struct {
	sc    *ServerContext
	oauth *google.OAuthClient
}

func (h *authHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/login", h.login)
	mux.HandleFunc("GET /auth/callback", h.callback)
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	state := google.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusFound)
}

func (h *authHandler) callback(w http.ResponseWriter, r *http.Request) {
	action := h.newAction(r)
	err := h.handleCallback(w, r)
	if err != nil {
		h.sc.Orchestrator().RecordError(agenda.NewRunError(agenda.KindAuthError, err, time.Now()))
		h.sc.Logger().Warn("sign-in callback failed", logging.Err(err))
	} else if sess, ok := h.sc.Sessions().Current(); ok {
		action.WithUser(sess.Identity.Email)
	}
	h.sc.Audit().Log(r.Context(), action.Complete(err))
}

func (h *authHandler) handleCallback(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		err := fmt.Errorf("authorization denied: %s", msg)
		writeError(w, http.StatusUnauthorized, err, string(agenda.KindAuthError))
		return err
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		err := fmt.Errorf("oauth state mismatch")
		writeError(w, http.StatusBadRequest, err, string(agenda.KindAuthError))
		return err
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/auth", MaxAge: -1})

	grant, err := h.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err, string(agenda.KindAuthError))
		return err
	}

	if _, err := completeSignIn(r.Context(), h.sc, grant.IDToken, grant.AccessToken, grant.ExpiresIn); err != nil {
		writeError(w, http.StatusUnauthorized, err, string(agenda.KindAuthError))
		return err
	}

	// The outcome of the first run is visible in the snapshot.
	_ = h.sc.Orchestrator().Refresh(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, "/api/agenda", http.StatusFound)
	return nil
}

func (h *authHandler) newAction(r *http.Request) *instrumentation.Action {
	return instrumentation.NewAction("session.oauth_callback").WithSpanContext(r.Context())
}
