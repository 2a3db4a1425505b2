package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
	"github.com/teemow/agendacal/internal/model"
	"github.com/teemow/agendacal/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx response that carries no snapshot.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// WindowRequest is the body of PUT /api/agenda/window. Omitted fields are
// left unchanged. An empty or "today" start date follows the current day.
type WindowRequest struct {
	StartDate *string `json:"startDate"`
	Days      *int    `json:"days"`
}

// VisibleRequest is the body of PUT /api/calendars/visible.
type VisibleRequest struct {
	IDs []string `json:"ids"`
}

// SessionRequest is the body of POST /api/session. ExpiresIn is in seconds.
type SessionRequest struct {
	Credential  string `json:"credential"`
	AccessToken string `json:"accessToken,omitempty"`
	ExpiresIn   int64  `json:"expiresIn,omitempty"`
}

// CalendarsResponse is the body of GET /api/calendars.
type CalendarsResponse struct {
	Calendars []model.CalendarInfo `json:"calendars"`
	Visible   []string             `json:"visible"`
}

type agendaAPI struct {
	sc *ServerContext
}

func (a *agendaAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/agenda", a.getAgenda)
	mux.HandleFunc("POST /api/agenda/refresh", a.refresh)
	mux.HandleFunc("PUT /api/agenda/window", a.setWindow)
	mux.HandleFunc("GET /api/calendars", a.listCalendars)
	mux.HandleFunc("PUT /api/calendars/visible", a.setVisible)
	mux.HandleFunc("POST /api/session", a.signIn)
	mux.HandleFunc("DELETE /api/session", a.signOut)
}

func (a *agendaAPI) getAgenda(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sc.Orchestrator().Snapshot())
}

func (a *agendaAPI) refresh(w http.ResponseWriter, r *http.Request) {
	action := a.newAction(r, "agenda.refresh")
	err := a.runAndRespond(w, r)
	a.finish(r, action, err)
}

func (a *agendaAPI) setWindow(w http.ResponseWriter, r *http.Request) {
	action := a.newAction(r, "agenda.set_window")

	var req WindowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		a.finish(r, action, err)
		return
	}

	var start *model.Date
	if req.StartDate != nil {
		d, err := parseStartDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err, "")
			a.finish(r, action, err)
			return
		}
		start = &d
	}
	if err := a.sc.Orchestrator().SetWindow(start, req.Days); err != nil {
		writeMutationError(w, err)
		a.finish(r, action, err)
		return
	}

	err := a.runAndRespond(w, r)
	a.finish(r, action, err)
}

func (a *agendaAPI) listCalendars(w http.ResponseWriter, r *http.Request) {
	orch := a.sc.Orchestrator()
	calendars, err := orch.LoadCalendars(r.Context())
	if err != nil {
		var runErr *agenda.RunError
		switch {
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusUnauthorized, err, "")
		case errors.Is(err, agenda.ErrRunInFlight):
			writeError(w, http.StatusConflict, err, "")
		case errors.As(err, &runErr):
			writeError(w, statusForRunError(runErr), err, string(runErr.Kind))
		default:
			writeError(w, http.StatusInternalServerError, err, "")
		}
		return
	}

	writeJSON(w, http.StatusOK, CalendarsResponse{
		Calendars: calendars,
		Visible:   orch.Snapshot().VisibleCalendars,
	})
}

func (a *agendaAPI) setVisible(w http.ResponseWriter, r *http.Request) {
	action := a.newAction(r, "calendars.set_visible")

	var req VisibleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		a.finish(r, action, err)
		return
	}
	if req.IDs == nil {
		req.IDs = []string{}
	}
	if err := a.sc.Orchestrator().SetVisibleCalendars(req.IDs); err != nil {
		writeMutationError(w, err)
		a.finish(r, action, err)
		return
	}

	err := a.runAndRespond(w, r)
	a.finish(r, action, err)
}

func (a *agendaAPI) signIn(w http.ResponseWriter, r *http.Request) {
	action := a.newAction(r, "session.sign_in")

	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		a.finish(r, action, err)
		return
	}

	sess, err := completeSignIn(r.Context(), a.sc, req.Credential, req.AccessToken, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err, string(agenda.KindAuthError))
		a.finish(r, action, err)
		return
	}
	action.WithUser(sess.Identity.Email)

	err = a.runAndRespond(w, r)
	a.finish(r, action, err)
}

func (a *agendaAPI) signOut(w http.ResponseWriter, r *http.Request) {
	action := a.newAction(r, "session.sign_out")
	if sess, ok := a.sc.Sessions().Current(); ok {
		action.WithUser(sess.Identity.Email)
	}

	a.sc.Orchestrator().SignOut("logout")

	err := a.runAndRespond(w, r)
	a.finish(r, action, err)
}

// completeSignIn creates a session from an identity credential and an
// optional calendar bearer token. A rejected credential is recorded as an
// AUTH_ERROR on the orchestrator.
func completeSignIn(ctx context.Context, sc *ServerContext, credential, accessToken string, expiresIn time.Duration) (session.Session, error) {
	sess, err := sc.Sessions().SignIn(credential)
	if err != nil {
		sc.Orchestrator().RecordError(agenda.NewRunError(agenda.KindAuthError, err, time.Now()))
		sc.Metrics().RecordSignIn(ctx, instrumentation.SignInResultFailure, "")
		return session.Session{}, err
	}
	if accessToken != "" {
		if err := sc.Sessions().SetAccessToken(accessToken, expiresIn); err != nil {
			return session.Session{}, err
		}
	}
	return sess, nil
}

// runAndRespond runs one aggregation pass and writes the resulting snapshot.
// The run is detached from request cancellation so a dropped client does not
// abort it midway.
func (a *agendaAPI) runAndRespond(w http.ResponseWriter, r *http.Request) error {
	orch := a.sc.Orchestrator()
	err := orch.Refresh(context.WithoutCancel(r.Context()))

	var runErr *agenda.RunError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, orch.Snapshot())
	case errors.Is(err, agenda.ErrRunInFlight), errors.Is(err, agenda.ErrRunSuperseded):
		writeError(w, http.StatusConflict, err, "")
	case errors.As(err, &runErr):
		writeJSON(w, statusForRunError(runErr), orch.Snapshot())
	default:
		writeError(w, http.StatusInternalServerError, err, "")
	}
	return err
}

func (a *agendaAPI) newAction(r *http.Request, name string) *instrumentation.Action {
	action := instrumentation.NewAction(name).WithSpanContext(r.Context())
	if sess, ok := a.sc.Sessions().Current(); ok {
		action.WithUser(sess.Identity.Email)
	}
	return action
}

func (a *agendaAPI) finish(r *http.Request, action *instrumentation.Action, err error) {
	snap := a.sc.Orchestrator().Snapshot()
	action.WithWindow(snap.StartDate.String(), snap.Days).WithRunID(snap.RunID).Complete(err)
	a.sc.Audit().Log(r.Context(), action)
	if err != nil {
		a.sc.Logger().Debug("api request failed",
			slog.String("action", action.Name),
			logging.Err(err))
	}
}

func statusForRunError(err *agenda.RunError) int {
	switch err.Kind {
	case agenda.KindSessionExpired, agenda.KindAuthError:
		return http.StatusUnauthorized
	case agenda.KindLoadError, agenda.KindAPIError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agenda.ErrRunInFlight):
		writeError(w, http.StatusConflict, err, "")
	case errors.Is(err, agenda.ErrInvalidWindowLength):
		writeError(w, http.StatusBadRequest, err, "")
	default:
		writeError(w, http.StatusInternalServerError, err, "")
	}
}

func parseStartDate(s string) (model.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return model.Date{}, nil
	}
	return model.ParseDate(s)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, kind string) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Type: kind})
}
