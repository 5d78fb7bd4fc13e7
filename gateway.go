package consoleauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	loginPath   = "/auth/login"
	logoutPath  = "/auth/logout"
	refreshPath = "/auth/refresh"
	verifyPath  = "/auth/verify"
	mePath      = "/auth/me"
)

// Gateway is the stateless network client for the backend's auth endpoints.
// Every operation returns a typed error from the taxonomy in errors.go;
// nothing panics or leaks raw transport errors across this boundary.
//
// Bearer attachment is the Transport's job. The one exception is
// VerifyToken, which probes a candidate token explicitly because it runs
// before the Store holds one.
type Gateway struct {
	baseURL string
	http    *http.Client
}

// NewGateway validates the base URL and returns a Gateway using client for
// its round trips.
func NewGateway(cfg APIConfig, client *http.Client) (*Gateway, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("gateway base URL required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("gateway base URL must be absolute")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{baseURL: base, http: client}, nil
}

// Login performs the credential exchange. The backend also sets the durable
// renewal cookie as a side effect invisible to this client.
func (g *Gateway) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var out LoginResponse
	if err := g.do(ctx, http.MethodPost, loginPath, creds, &out, ""); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("%w: login response missing user", ErrUnexpected)
	}
	out.User.Normalize()
	if err := out.User.Validate(); err != nil {
		return nil, fmt.Errorf("%w: login response validation: %v", ErrUnexpected, err)
	}
	if out.Tokens.AccessToken == "" || out.Tokens.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: login response missing tokens", ErrUnexpected)
	}
	// some backend versions carry permissions only at the top level
	if len(out.User.Permissions) == 0 && len(out.Permissions) > 0 {
		out.User.Permissions = append([]string(nil), out.Permissions...)
	}
	return &out, nil
}

// Logout tells the backend to drop the durable credential. Callers treat
// the result as best-effort.
func (g *Gateway) Logout(ctx context.Context) error {
	return g.do(ctx, http.MethodPost, logoutPath, struct{}{}, nil, "")
}

// Refresh exchanges the durable server-side credential for a new access
// token. The request body is empty on purpose; the credential travels out
// of band.
func (g *Gateway) Refresh(ctx context.Context) (*Tokens, error) {
	var out Tokens
	if err := g.do(ctx, http.MethodPost, refreshPath, struct{}{}, &out, ""); err != nil {
		if errors.Is(err, ErrNetwork) {
			return nil, err
		}
		if errors.Is(err, ErrUnauthorized) {
			return nil, ErrRefreshFailed
		}
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if out.AccessToken == "" || out.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: malformed token envelope", ErrRefreshFailed)
	}
	return &out, nil
}

// VerifyToken probes whether the backend still accepts tok. Any failure,
// transport or otherwise, counts as invalid.
func (g *Gateway) VerifyToken(ctx context.Context, tok string) bool {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := g.do(ctx, http.MethodGet, verifyPath, nil, &out, tok); err != nil {
		return false
	}
	return out.Valid
}

// CurrentUser fetches the authenticated operator's profile.
func (g *Gateway) CurrentUser(ctx context.Context) (*User, error) {
	var out User
	if err := g.do(ctx, http.MethodGet, mePath, nil, &out, ""); err != nil {
		return nil, err
	}
	out.Normalize()
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: profile validation: %v", ErrUnexpected, err)
	}
	return &out, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any, bearer string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encoding request: %v", ErrUnexpected, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrUnexpected, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrUnexpected, err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	default:
		if msg := serverMessage(resp.Body); msg != "" {
			return fmt.Errorf("%w: %s", ErrUnexpected, msg)
		}
		return fmt.Errorf("%w: status %d", ErrUnexpected, resp.StatusCode)
	}
}

// serverMessage pulls the human-readable message most backend error bodies
// carry under "message" or "error".
func serverMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
