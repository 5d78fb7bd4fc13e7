package consoleauth

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robin-mta/consoleauth/credstore"
	"github.com/robin-mta/consoleauth/token"
)

// Store is the session state machine: the single authoritative record of who
// is logged in, with what token, permissions, and expiry. It is the only
// writer of session data; every other component reads snapshots or calls the
// mutation operations below.
//
// States: anonymous -> authenticating (inside Login) -> authenticated ->
// anonymous. The "expiring" condition is derived, not stored: it holds while
// HasValidSession is true and the remaining time is inside the monitor's
// warning window.
type Store struct {
	id    string
	api   API
	creds credstore.Store
	nav   Navigator
	clock func() time.Time

	loginRoute   string
	defaultRoute string

	mu            sync.RWMutex
	user          *User
	accessToken   string
	permissions   []string
	permSet       map[string]struct{}
	authenticated bool
	loading       bool
	lastError     string
	expiresAt     time.Time
	lastActivity  time.Time
	returnURL     string

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewStore builds a Store around its collaborators. api may be bound later
// by the Builder; nav may be nil when no navigation signals are wanted.
func NewStore(api API, creds credstore.Store, nav Navigator, cfg SessionConfig) *Store {
	return &Store{
		id:           uuid.NewString(),
		api:          api,
		creds:        creds,
		nav:          nav,
		clock:        time.Now,
		loginRoute:   cfg.LoginRoute,
		defaultRoute: cfg.DefaultRoute,
		subs:         make(map[int]func(State)),
	}
}

// Login authenticates against the backend and, on success, persists the
// credentials, publishes the authenticated state, and signals navigation to
// the captured return target or the default landing route. On failure the
// session stays anonymous and State.Error carries the user-facing message.
//
// A Login issued while another one is in flight is a no-op.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	if s.api == nil {
		return ErrClientNotReady
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()
	s.notify()

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.lastError = ErrorMessage(err)
		s.mu.Unlock()
		s.notify()
		return err
	}

	cctx := credstore.WithOrigin(ctx, s.id)
	if err := s.creds.SetToken(cctx, res.Tokens.AccessToken); err != nil {
		log.Print("consoleauth: persisting access token failed")
	}
	if err := s.creds.SetUser(cctx, res.User); err != nil {
		log.Print("consoleauth: persisting user profile failed")
	}

	now := s.clock()
	s.mu.Lock()
	s.user = res.User
	s.accessToken = res.Tokens.AccessToken
	s.resetPermissionsLocked(res.User)
	s.authenticated = true
	s.loading = false
	s.lastError = ""
	s.expiresAt = now.Add(time.Duration(res.Tokens.ExpiresIn) * time.Second)
	s.lastActivity = now
	target := s.returnURL
	s.returnURL = ""
	s.mu.Unlock()
	s.notify()

	if target == "" {
		target = s.defaultRoute
	}
	if s.nav != nil {
		s.nav.NavigateTo(target)
	}
	return nil
}

// Logout tears the session down. The backend call is best-effort: any
// failure is swallowed, the credential store is cleared unconditionally, and
// the caller always observes an anonymous session afterwards.
//
// The in-memory state is dropped before the backend call so the logout
// request travels without a bearer token. A stale token would draw a 401,
// and a 401 on the logout itself must pass through the transport rather
// than start another renewal: Logout runs inside the renewal path.
func (s *Store) Logout(ctx context.Context) {
	s.reset()
	if s.api != nil {
		if err := s.api.Logout(ctx); err != nil {
			log.Print("consoleauth: backend logout failed, clearing local session anyway")
		}
	}
	if err := s.creds.Clear(credstore.WithOrigin(ctx, s.id)); err != nil {
		log.Print("consoleauth: clearing credential store failed")
	}
	s.notify()
	if s.nav != nil {
		s.nav.NavigateTo(s.loginRoute)
	}
}

// AutoLogin restores a session at process start. A stored token+profile pair
// is verified remotely and adopted when still valid; otherwise a silent
// renewal through the durable server-side credential is attempted. Every
// failure path is silent: the session simply stays anonymous.
func (s *Store) AutoLogin(ctx context.Context) bool {
	if s.api == nil {
		return false
	}
	cctx := credstore.WithOrigin(ctx, s.id)

	tok, terr := s.creds.Token(cctx)
	user, uerr := s.creds.User(cctx)
	if terr == nil && uerr == nil && tok != "" && s.api.VerifyToken(ctx, tok) {
		now := s.clock()
		s.mu.Lock()
		s.user = user
		s.accessToken = tok
		s.resetPermissionsLocked(user)
		s.authenticated = true
		if exp, ok := token.ExpiryDate(tok); ok {
			s.expiresAt = exp
		}
		s.lastActivity = now
		s.mu.Unlock()
		s.notify()
		return true
	}

	tokens, err := s.api.Refresh(ctx)
	if err != nil {
		if err := s.creds.Clear(cctx); err != nil {
			log.Print("consoleauth: clearing credential store failed")
		}
		return false
	}

	if err := s.creds.SetToken(cctx, tokens.AccessToken); err != nil {
		log.Print("consoleauth: persisting access token failed")
	}
	now := s.clock()
	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.authenticated = true
	s.expiresAt = now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
	s.lastActivity = now
	s.mu.Unlock()
	s.notify()

	profile, err := s.api.CurrentUser(ctx)
	if err != nil {
		log.Print("consoleauth: profile fetch after silent renewal failed")
		return true
	}
	if err := s.creds.SetUser(cctx, profile); err != nil {
		log.Print("consoleauth: persisting user profile failed")
	}
	s.mu.Lock()
	s.user = profile
	s.resetPermissionsLocked(profile)
	s.mu.Unlock()
	s.notify()
	return true
}

// UpdateTokens atomically swaps the access token and recomputes the session
// expiry from the new token's lifetime. Invoked by the Transport after a
// successful renewal.
func (s *Store) UpdateTokens(tokens Tokens) {
	if err := s.creds.SetToken(credstore.WithOrigin(context.Background(), s.id), tokens.AccessToken); err != nil {
		log.Print("consoleauth: persisting access token failed")
	}
	now := s.clock()
	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.expiresAt = now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
	s.mu.Unlock()
	s.notify()
}

// UpdateLastActivity records user interaction; called by the inactivity
// monitor's throttled activity listener.
func (s *Store) UpdateLastActivity() {
	s.mu.Lock()
	s.lastActivity = s.clock()
	s.mu.Unlock()
	s.notify()
}

// SetReturnURL captures the protected destination a denied navigation was
// headed to; the next successful Login navigates there.
func (s *Store) SetReturnURL(url string) {
	s.mu.Lock()
	s.returnURL = url
	s.mu.Unlock()
}

// ClearError discards the transient login error.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
	s.notify()
}

// IsAuthenticated reports whether a session is established.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// AccessToken returns the current bearer token, empty when anonymous.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// HasValidSession reports whether the session expiry is set and still ahead.
func (s *Store) HasValidSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiresAt.IsZero() && s.clock().Before(s.expiresAt)
}

// HasPermission reports whether the current user holds the permission.
// Always false when anonymous.
func (s *Store) HasPermission(perm string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated {
		return false
	}
	_, ok := s.permSet[perm]
	return ok
}

// HasAllPermissions reports whether the current user holds every given
// permission (AND logic). Always false when anonymous.
func (s *Store) HasAllPermissions(perms ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated {
		return false
	}
	for _, p := range perms {
		if _, ok := s.permSet[p]; !ok {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether the current user holds at least one of
// the given permissions (OR logic). Always false when anonymous.
func (s *Store) HasAnyPermission(perms ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated {
		return false
	}
	for _, p := range perms {
		if _, ok := s.permSet[p]; ok {
			return true
		}
	}
	return false
}

// HasRole reports whether the current user holds the role.
func (s *Store) HasRole(role string) bool {
	return s.HasAnyRole(role)
}

// HasAnyRole reports whether the current user holds at least one of the
// given roles. Always false when anonymous.
func (s *Store) HasAnyRole(roles ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated || s.user == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range s.user.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// State returns a snapshot of the current session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Subscribe registers fn to be called with a fresh snapshot after every
// committed state change. The returned function cancels the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// WatchStorage reacts to the credential medium being mutated by another
// console instance: observing a clear while authenticated transitions this
// instance to anonymous as well. Returns ErrWatchUnsupported when the store
// cannot emit change notifications.
func (s *Store) WatchStorage(ctx context.Context) error {
	watcher, ok := s.creds.(credstore.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	events, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for ev := range events {
			if ev.Origin == s.id || ev.Op != credstore.OpClear {
				continue
			}
			if !s.IsAuthenticated() {
				continue
			}
			log.Print("consoleauth: credentials cleared externally, ending session")
			s.reset()
			s.notify()
		}
	}()
	return nil
}

func (s *Store) reset() {
	s.mu.Lock()
	s.user = nil
	s.accessToken = ""
	s.permissions = nil
	s.permSet = nil
	s.authenticated = false
	s.loading = false
	s.lastError = ""
	s.expiresAt = time.Time{}
	s.lastActivity = time.Time{}
	s.returnURL = ""
	s.mu.Unlock()
}

// resetPermissionsLocked recomputes the denormalized permission set as a
// whole from the profile; permissions are never patched incrementally.
func (s *Store) resetPermissionsLocked(user *User) {
	if user == nil {
		s.permissions = nil
		s.permSet = nil
		return
	}
	s.permissions = append([]string(nil), user.Permissions...)
	s.permSet = make(map[string]struct{}, len(s.permissions))
	for _, p := range s.permissions {
		s.permSet[p] = struct{}{}
	}
}

func (s *Store) stateLocked() State {
	return State{
		User:             s.user.Clone(),
		AccessToken:      s.accessToken,
		Permissions:      append([]string(nil), s.permissions...),
		Authenticated:    s.authenticated,
		Loading:          s.loading,
		Error:            s.lastError,
		SessionExpiresAt: s.expiresAt,
		LastActivityAt:   s.lastActivity,
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	snapshot := s.stateLocked()
	s.mu.RUnlock()

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
