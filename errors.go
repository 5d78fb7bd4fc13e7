package consoleauth

import "errors"

var (
	// ErrInvalidCredentials is returned by login when the backend rejects
	// the supplied username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired signals that the access token is no longer accepted.
	ErrTokenExpired = errors.New("token expired")
	// ErrNetwork wraps transport-level failures where no response arrived.
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized maps HTTP 401 responses outside of the login flow.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden maps HTTP 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionTimeout is reported to callers whose requests failed because
	// the session could not be renewed.
	ErrSessionTimeout = errors.New("session timeout")
	// ErrTokenInvalid signals a structurally invalid authentication token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshFailed signals that the silent renewal round trip failed.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrUnexpected wraps any backend failure the taxonomy has no specific
	// code for; the server message is carried in the wrapping error.
	ErrUnexpected = errors.New("unexpected error")
	// ErrClientNotReady is returned when a component is used before Build.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrWatchUnsupported is returned by Store.WatchStorage when the
	// configured credential store cannot emit change notifications.
	ErrWatchUnsupported = errors.New("credential store does not support watch")
)

// fallbackMessage is used for any error outside the taxonomy. The mapping
// must stay total: no code may surface to the UI without a message.
const fallbackMessage = "An unexpected error occurred"

// ErrorMessage maps an error from the taxonomy to its fixed user-facing
// message. Unknown errors map to a generic fallback.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrTokenExpired):
		return "Your session has expired. Please login again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection."
	case errors.Is(err, ErrUnauthorized):
		return "You are not authorized to perform this action."
	case errors.Is(err, ErrForbidden):
		return "Access forbidden."
	case errors.Is(err, ErrSessionTimeout):
		return "Your session has timed out. Please login again."
	case errors.Is(err, ErrTokenInvalid):
		return "Invalid authentication token."
	case errors.Is(err, ErrRefreshFailed):
		return "Failed to refresh session. Please login again."
	default:
		return fallbackMessage
	}
}
