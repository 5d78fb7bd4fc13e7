package consoleauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func newGatewayFixture(t *testing.T, handler http.Handler) (*Gateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw, err := NewGateway(APIConfig{BaseURL: srv.URL + "/api/v1"}, srv.Client())
	if err != nil {
		t.Fatalf("building gateway: %v", err)
	}
	return gw, srv
}

func TestNewGatewayRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "not-a-url", "/relative/only"} {
		if _, err := NewGateway(APIConfig{BaseURL: base}, nil); err == nil {
			t.Fatalf("expected error for base URL %q", base)
		}
	}
}

func TestGatewayLoginParsesProfile(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-Request-Id") == "" {
			t.Error("request id header missing")
		}
		var creds Credentials
		if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
			t.Errorf("decoding credentials: %v", err)
		}
		if !creds.RememberMe {
			t.Error("rememberMe flag not forwarded")
		}
		// numeric id, prefixed roles, permissions only at the top level
		io.WriteString(w, `{
			"user": {"id": 42, "username": "postmaster", "email": "pm@example.com",
			         "roles": ["ROLE_ADMIN", "ROLE_POSTMASTER"]},
			"tokens": {"accessToken": "tok", "expiresIn": 3600, "tokenType": "Bearer"},
			"permissions": ["queues:read"]
		}`)
	}).Methods(http.MethodPost)
	gw, _ := newGatewayFixture(t, r)

	res, err := gw.Login(context.Background(), Credentials{Username: "postmaster", Password: "pw", RememberMe: true})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.User.ID != "42" {
		t.Fatalf("numeric id must become a string, got %q", res.User.ID)
	}
	if res.User.Roles[0] != "ADMIN" || res.User.Roles[1] != "POSTMASTER" {
		t.Fatalf("role prefix not stripped: %v", res.User.Roles)
	}
	if len(res.User.Permissions) != 1 || res.User.Permissions[0] != "queues:read" {
		t.Fatalf("top-level permissions not folded into the profile: %v", res.User.Permissions)
	}
	if res.Tokens.AccessToken != "tok" || res.Tokens.ExpiresIn != 3600 {
		t.Fatalf("token envelope mismatch: %+v", res.Tokens)
	}
}

func TestGatewayLoginRejection(t *testing.T) {
	gw, _ := newGatewayFixture(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"message":"bad credentials"}`, http.StatusUnauthorized)
	}))

	_, err := gw.Login(context.Background(), Credentials{Username: "x", Password: "y"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestGatewayLoginMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"missing user":   `{"tokens": {"accessToken": "tok", "expiresIn": 3600}}`,
		"missing tokens": `{"user": {"id": "1", "username": "admin", "email": "a@b.c", "roles": []}}`,
		"invalid user":   `{"user": {"id": "", "username": "admin", "email": "a@b.c", "roles": []}, "tokens": {"accessToken": "tok", "expiresIn": 3600}}`,
	}
	for name, body := range cases {
		payload := body
		gw, _ := newGatewayFixture(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, payload)
		}))
		if _, err := gw.Login(context.Background(), Credentials{}); !errors.Is(err, ErrUnexpected) {
			t.Fatalf("%s: expected ErrUnexpected, got %v", name, err)
		}
	}
}

func TestGatewayNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	gw, err := NewGateway(APIConfig{BaseURL: base}, nil)
	if err != nil {
		t.Fatalf("building gateway: %v", err)
	}
	if _, err := gw.Login(context.Background(), Credentials{}); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if _, err := gw.Refresh(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("network failure must not be downgraded to ErrRefreshFailed, got %v", err)
	}
	if gw.VerifyToken(context.Background(), "tok") {
		t.Fatal("verification against an unreachable backend must report invalid")
	}
}

func TestGatewayStatusMapping(t *testing.T) {
	gw, _ := newGatewayFixture(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/v1/auth/me":
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.Error(w, `{"message":"queue backend unavailable"}`, http.StatusBadGateway)
		}
	}))

	if _, err := gw.CurrentUser(context.Background()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	err := gw.Logout(context.Background())
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
	if !strings.Contains(err.Error(), "queue backend unavailable") {
		t.Fatalf("server message not carried: %v", err)
	}
}

func TestGatewayRefresh(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		if string(body) != "{}" {
			t.Errorf("refresh body must be an empty object, got %q", body)
		}
		io.WriteString(w, `{"accessToken": "fresh", "expiresIn": 900, "tokenType": "Bearer"}`)
	}).Methods(http.MethodPost)
	gw, _ := newGatewayFixture(t, r)

	tokens, err := gw.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if tokens.AccessToken != "fresh" || tokens.ExpiresIn != 900 {
		t.Fatalf("token envelope mismatch: %+v", tokens)
	}
}

func TestGatewayRefreshFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"rejected": func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		},
		"malformed envelope": func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, `{"expiresIn": 900}`)
		},
	}
	for name, handler := range cases {
		gw, _ := newGatewayFixture(t, handler)
		if _, err := gw.Refresh(context.Background()); !errors.Is(err, ErrRefreshFailed) {
			t.Fatalf("%s: expected ErrRefreshFailed, got %v", name, err)
		}
	}
}

func TestGatewayVerifyToken(t *testing.T) {
	gw, _ := newGatewayFixture(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		valid := req.Header.Get("Authorization") == "Bearer good"
		json.NewEncoder(w).Encode(map[string]bool{"valid": valid})
	}))

	if !gw.VerifyToken(context.Background(), "good") {
		t.Fatal("expected the accepted token to verify")
	}
	if gw.VerifyToken(context.Background(), "bad") {
		t.Fatal("expected the rejected token to fail verification")
	}
}
