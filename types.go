package consoleauth

import (
	"context"
	"time"

	"github.com/robin-mta/consoleauth/credstore"
)

// User is the operator profile. It is defined in credstore because the
// credential medium owns its persisted shape and validation.
type User = credstore.User

// Credentials is the login request body.
type Credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// Tokens is the token envelope issued on login and renewal. RefreshToken is
// normally absent: the renewal credential is a durable HTTP-only cookie the
// backend manages out of band.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// LoginResponse is the backend's successful login body.
type LoginResponse struct {
	User        *User    `json:"user"`
	Tokens      Tokens   `json:"tokens"`
	Permissions []string `json:"permissions"`
}

// State is an immutable snapshot of the session published to subscribers.
type State struct {
	User             *User
	AccessToken      string
	Permissions      []string
	Authenticated    bool
	Loading          bool
	Error            string
	SessionExpiresAt time.Time
	LastActivityAt   time.Time
}

// API is the Session Gateway surface the Store and Transport depend on.
// Gateway is the production implementation; tests substitute fakes.
type API interface {
	Login(ctx context.Context, creds Credentials) (*LoginResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*Tokens, error)
	VerifyToken(ctx context.Context, tok string) bool
	CurrentUser(ctx context.Context) (*User, error)
}

// Navigator receives the navigation signals the session subsystem raises:
// the post-login destination, the login route on logout, nothing else.
type Navigator interface {
	NavigateTo(url string)
}

// NavigatorFunc adapts a plain function to the Navigator interface.
type NavigatorFunc func(url string)

// NavigateTo calls f.
func (f NavigatorFunc) NavigateTo(url string) { f(url) }
