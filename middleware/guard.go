package middleware

import (
	"context"
	"net/http"

	consoleauth "github.com/robin-mta/consoleauth"
)

type sessionContextKey struct{}

// SessionFromContext retrieves the session snapshot RequireSession injected
// for an allowed request.
func SessionFromContext(ctx context.Context) (consoleauth.State, bool) {
	st, ok := ctx.Value(sessionContextKey{}).(consoleauth.State)
	return st, ok
}

// RequireSession gates a route behind the guard. Denied requests receive the
// redirect named by the guard's decision; allowed requests proceed with the
// session snapshot in their context.
func RequireSession(guard *consoleauth.Guard, store *consoleauth.Store, rule consoleauth.RouteRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			decision := guard.Decide(r.URL.RequestURI(), rule)
			if decision.Action != consoleauth.GuardAllow {
				http.Redirect(w, r, decision.RedirectURL, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, store.State())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
