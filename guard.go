package consoleauth

import "net/url"

// GuardAction is the outcome of a route guard decision.
type GuardAction int

const (
	// GuardAllow lets the navigation proceed.
	GuardAllow GuardAction = iota
	// GuardRedirectLogin denies and redirects to the login route, carrying
	// the requested destination as a return target.
	GuardRedirectLogin
	// GuardRedirectUnauthorized denies and redirects to the unauthorized
	// page, discarding the return target.
	GuardRedirectUnauthorized
)

// RouteRule declares what a destination requires: an OR-set of roles and an
// AND-set of permissions. An empty rule only requires authentication.
type RouteRule struct {
	Roles       []string
	Permissions []string
}

// Decision is the guard's verdict. RedirectURL is set for deny outcomes.
type Decision struct {
	Action      GuardAction
	RedirectURL string
}

// Guard is the navigation gate. It consults the Store and nothing else; it
// performs no I/O and is safe for concurrent use.
type Guard struct {
	store             *Store
	loginRoute        string
	unauthorizedRoute string
}

// NewGuard returns a Guard over store using the configured routes.
func NewGuard(store *Store, cfg SessionConfig) *Guard {
	return &Guard{
		store:             store,
		loginRoute:        cfg.LoginRoute,
		unauthorizedRoute: cfg.UnauthorizedRoute,
	}
}

// Decide evaluates a navigation to destination under rule. An anonymous or
// expired session is sent to the login route with the exact destination
// (path, query, and fragment) preserved in the returnUrl parameter and
// captured on the Store for the post-login redirect. An authenticated user
// that satisfies neither the role OR-set nor the permission AND-set is sent
// to the unauthorized page.
func (g *Guard) Decide(destination string, rule RouteRule) Decision {
	if !g.store.IsAuthenticated() || !g.store.HasValidSession() {
		g.store.SetReturnURL(destination)
		redirect := url.URL{
			Path:     g.loginRoute,
			RawQuery: url.Values{"returnUrl": {destination}}.Encode(),
		}
		return Decision{Action: GuardRedirectLogin, RedirectURL: redirect.String()}
	}

	if len(rule.Roles) == 0 && len(rule.Permissions) == 0 {
		return Decision{Action: GuardAllow}
	}
	if len(rule.Roles) > 0 && g.store.HasAnyRole(rule.Roles...) {
		return Decision{Action: GuardAllow}
	}
	if len(rule.Permissions) > 0 && g.store.HasAllPermissions(rule.Permissions...) {
		return Decision{Action: GuardAllow}
	}
	return Decision{Action: GuardRedirectUnauthorized, RedirectURL: g.unauthorizedRoute}
}
