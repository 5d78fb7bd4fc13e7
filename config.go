package consoleauth

import (
	"errors"
	"strings"
	"time"
)

// Config groups all tunables of the session subsystem. Zero values are
// filled by defaultConfig; Build validates the merged result.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Storage StorageConfig

	// PublicEndpoints lists path fragments that never receive a bearer
	// token and never trigger renewal. Matching is by substring, like the
	// console's interceptor allowlist.
	PublicEndpoints []string
}

// APIConfig configures the Session Gateway.
type APIConfig struct {
	// BaseURL is the gateway root, e.g. "https://mail.example.com/api/v1".
	BaseURL string
	// Timeout bounds each HTTP round trip. Zero means no client timeout.
	Timeout time.Duration
}

// SessionConfig configures the state machine, inactivity monitor, and the
// routes the subsystem navigates to.
type SessionConfig struct {
	// InactivityTimeout is the idle window after which the session is
	// force-logged-out.
	InactivityTimeout time.Duration
	// WarningWindow is how long before the timeout the expiry warning is
	// raised. Must be shorter than InactivityTimeout.
	WarningWindow time.Duration
	// ActivityThrottle bounds how often user interaction updates shared
	// activity state.
	ActivityThrottle time.Duration
	// CheckInterval is the monitor's tick period.
	CheckInterval time.Duration

	LoginRoute        string
	DefaultRoute      string
	UnauthorizedRoute string
}

// StorageConfig configures the credential store.
type StorageConfig struct {
	// Prefix namespaces the two credential entries.
	Prefix string
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			InactivityTimeout: 30 * time.Minute,
			WarningWindow:     5 * time.Minute,
			ActivityThrottle:  10 * time.Second,
			CheckInterval:     time.Minute,
			LoginRoute:        "/auth/login",
			DefaultRoute:      "/dashboard",
			UnauthorizedRoute: "/unauthorized",
		},
		Storage: StorageConfig{
			Prefix: "robin",
		},
		PublicEndpoints: []string{
			"/auth/login",
			"/auth/refresh",
			"/auth/register",
			"/auth/password-reset",
			"/health",
			"/actuator",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.PublicEndpoints = append([]string(nil), cfg.PublicEndpoints...)
	return out
}

// Validate checks the configuration invariants shared by every component.
func (c Config) Validate() error {
	if c.API.Timeout < 0 {
		return errors.New("API timeout must not be negative")
	}
	if c.Session.InactivityTimeout <= 0 {
		return errors.New("inactivity timeout must be positive")
	}
	if c.Session.WarningWindow <= 0 || c.Session.WarningWindow >= c.Session.InactivityTimeout {
		return errors.New("warning window must be positive and shorter than the inactivity timeout")
	}
	if c.Session.ActivityThrottle < 0 {
		return errors.New("activity throttle must not be negative")
	}
	if c.Session.CheckInterval <= 0 {
		return errors.New("check interval must be positive")
	}
	for _, route := range []string{c.Session.LoginRoute, c.Session.DefaultRoute, c.Session.UnauthorizedRoute} {
		if !strings.HasPrefix(route, "/") {
			return errors.New("routes must be absolute paths")
		}
	}
	if len(c.PublicEndpoints) == 0 {
		return errors.New("public endpoint allowlist must not be empty")
	}
	return nil
}
