package consoleauth

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/robin-mta/consoleauth/credstore"
)

// Builder assembles a Client. Construction is allocation-only; no network
// or storage I/O happens until the Client's components are used.
type Builder struct {
	config Config

	baseClient *http.Client
	redis      *redis.Client
	creds      credstore.Store
	nav        Navigator
	api        API

	built bool
}

// New returns a Builder loaded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the gateway root without replacing the rest of the
// configuration.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithBaseClient supplies the underlying HTTP client whose transport the
// refresh coordinator wraps.
func (b *Builder) WithBaseClient(client *http.Client) *Builder {
	b.baseClient = client
	return b
}

// WithRedis selects a redis-backed credential store shared across console
// instances.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore supplies a custom credential store. Takes precedence
// over WithRedis.
func (b *Builder) WithCredentialStore(store credstore.Store) *Builder {
	b.creds = store
	return b
}

// WithNavigator installs the navigation sink for post-login and logout
// redirects.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.nav = nav
	return b
}

// WithAPI overrides the Session Gateway; intended for tests.
func (b *Builder) WithAPI(api API) *Builder {
	b.api = api
	return b
}

// Build validates the configuration and wires the store, transport,
// gateway, guard, and monitor together.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	creds := b.creds
	if creds == nil && b.redis != nil {
		creds = credstore.NewRedis(b.redis, cfg.Storage.Prefix)
	}
	if creds == nil {
		creds = credstore.NewMemory()
	}

	store := NewStore(nil, creds, b.nav, cfg.Session)

	var baseRT http.RoundTripper
	if b.baseClient != nil && b.baseClient.Transport != nil {
		baseRT = b.baseClient.Transport
	}
	transport := NewTransport(store, baseRT, cfg.PublicEndpoints)
	httpClient := &http.Client{Transport: transport, Timeout: cfg.API.Timeout}

	api := b.api
	if api == nil {
		gw, err := NewGateway(cfg.API, httpClient)
		if err != nil {
			return nil, err
		}
		api = gw
	}
	store.api = api
	transport.bindAPI(api)

	b.built = true
	return &Client{
		config:    cfg,
		store:     store,
		transport: transport,
		api:       api,
		http:      httpClient,
		guard:     NewGuard(store, cfg.Session),
		monitor:   NewInactivityMonitor(store, cfg.Session),
	}, nil
}
