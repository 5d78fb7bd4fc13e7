package consoleauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// refreshState is the coordinator's single shared mutable resource: the
// renewal-in-flight flag and the queue of continuations waiting on its
// outcome. Only renew touches it, always under the mutex.
type refreshState struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []chan refreshOutcome
}

type refreshOutcome struct {
	token string
	err   error
}

// Transport is the refresh-coordinating http.RoundTripper every console API
// call goes through. It attaches the current bearer token to non-public
// requests and transparently recovers from a token-expired rejection by
// renewing the token at most once, no matter how many calls fail at the
// same time; concurrent failures are all satisfied by that single renewal.
//
// A failed renewal is terminal: the session is logged out and every
// affected call fails with session-expired semantics. Renewal is never
// retried on its own (see DESIGN.md).
type Transport struct {
	base    http.RoundTripper
	store   *Store
	api     API
	public  []string
	refresh refreshState
}

// NewTransport wraps base with bearer attachment and renewal coordination.
// public is the endpoint allowlist, matched by substring against the
// request path.
func NewTransport(store *Store, base http.RoundTripper, public []string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:   base,
		store:  store,
		public: append([]string(nil), public...),
	}
}

// bindAPI wires the gateway after construction; the Builder needs the
// Transport to exist before it can build the Gateway on top of it.
func (t *Transport) bindAPI(api API) { t.api = api }

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.isPublic(req.URL.Path) {
		return t.base.RoundTrip(req)
	}
	if req.Header.Get("Authorization") != "" {
		// caller-managed credential, e.g. a token verification carrying the
		// candidate token; never overwrite it and never renew on its behalf
		return t.base.RoundTrip(req)
	}

	bearer := t.store.AccessToken()
	if bearer != "" {
		req = withBearer(req, bearer)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil || bearer == "" {
		// anonymous calls failing for their own reasons are never retried
		return resp, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// the body cannot be replayed, so neither can the request
		return resp, nil
	}
	_ = resp.Body.Close()

	newToken, renewErr := t.renew(req.Context())
	if renewErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionTimeout, renewErr)
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(withBearer(retry, newToken))
}

// renew performs or joins the single in-flight renewal and returns the new
// bearer token. Exactly one renewal call reaches the backend regardless of
// how many requests observe an authentication failure concurrently.
func (t *Transport) renew(ctx context.Context) (string, error) {
	t.refresh.mu.Lock()
	if t.refresh.inFlight {
		ch := make(chan refreshOutcome, 1)
		t.refresh.waiters = append(t.refresh.waiters, ch)
		t.refresh.mu.Unlock()
		select {
		case outcome := <-ch:
			return outcome.token, outcome.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	t.refresh.inFlight = true
	t.refresh.mu.Unlock()

	var outcome refreshOutcome
	if t.api == nil {
		outcome = refreshOutcome{err: ErrClientNotReady}
	} else if tokens, err := t.api.Refresh(ctx); err != nil {
		// logout must proceed even if the failing request was cancelled
		t.store.Logout(context.WithoutCancel(ctx))
		outcome = refreshOutcome{err: err}
	} else {
		t.store.UpdateTokens(*tokens)
		outcome = refreshOutcome{token: tokens.AccessToken}
	}

	t.refresh.mu.Lock()
	waiters := t.refresh.waiters
	t.refresh.waiters = nil
	t.refresh.inFlight = false
	t.refresh.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome
	}
	return outcome.token, outcome.err
}

func (t *Transport) isPublic(path string) bool {
	for _, p := range t.public {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func withBearer(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return clone
}

// rewind clones req with a fresh, replayable body for the retry dispatch.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: rewinding request body: %v", ErrSessionTimeout, err)
		}
		clone.Body = body
	}
	return clone, nil
}
