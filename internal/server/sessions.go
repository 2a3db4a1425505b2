package server

import (
	"context"
	"sync"

	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/session"
)

// ObserveSessions keeps the active_sessions gauge and the sign-in counter in
// step with the session manager, and writes an audit record for each change.
func ObserveSessions(sc *ServerContext) {
	var (
		mu     sync.Mutex
		active bool
	)
	metrics := sc.Metrics()
	audit := sc.Audit()

	sc.Sessions().OnChange(func(change session.Change) {
		ctx := context.Background()

		mu.Lock()
		defer mu.Unlock()

		switch change.Kind {
		case session.ChangeSignIn:
			// A sign-in may replace a session without a sign-out.
			if !active {
				metrics.IncrementActiveSessions(ctx)
				active = true
			}
			metrics.RecordSignIn(ctx, instrumentation.SignInResultSuccess, change.Identity.Email)
		case session.ChangeSignOut:
			if active {
				metrics.DecrementActiveSessions(ctx)
				active = false
			}
			if change.Reason != "logout" {
				metrics.RecordSignIn(ctx, instrumentation.SignInResultExpired, change.Identity.Email)
			}
		}

		action := instrumentation.NewAction("session." + string(change.Kind)).WithUser(change.Identity.Email)
		audit.Log(ctx, action.Complete(nil))
	})
}
