// Package session resolves who is acting, which tenant context is
// active, and whether a platform administrator is impersonating another
// user, and arbitrates the single redirect that reconciles that state
// with the requested route.
//
// The SDK defines interfaces for credential storage, context fetching,
// authentication and impersonation backends, navigation and request
// caching. Concrete implementations are injected via Option functions,
// making the engine independent of any specific origin server.
//
// Example usage with the HTTP backend:
//
//	client, err := session.NewClient(
//	    session.Config{Routes: session.DefaultRoutes()},
//	    session.WithCredentialStore(credstore.NewFile(path)),
//	    session.WithContextFetcher(fetch.New(baseURL)),
//	    session.WithAuthBackend(api),
//	    session.WithImpersonationBackend(api),
//	)
package session

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Routes names the navigation targets the engine redirects to. All
// fields must be non-empty; use DefaultRoutes for the stock layout.
type Routes struct {
	// TenantSelect is where an impersonating admin picks the tenant
	// axis when none is set yet.
	TenantSelect string

	// AppRoot is the generic application root, the landing point after
	// entering impersonation with a tenant already selected.
	AppRoot string

	// PlatformPrefix is the path prefix of the platform-admin surface,
	// which is incompatible with an active impersonation overlay.
	PlatformPrefix string

	// Landing is the unauthenticated landing route used after logout.
	Landing string

	// TenantManagement is where a platform admin returns after
	// stopping impersonation.
	TenantManagement string
}

// DefaultRoutes returns the stock route layout.
func DefaultRoutes() Routes {
	return Routes{
		TenantSelect:     "/app/impersonation/select-tenant",
		AppRoot:          "/app",
		PlatformPrefix:   "/app/platform",
		Landing:          "/",
		TenantManagement: "/app/platform/tenants",
	}
}

// DefaultPollInterval is how often the credential watcher checks for a
// token that appeared outside this instance's own call path.
const DefaultPollInterval = 500 * time.Millisecond

// Config holds behavior configuration for the engine.
type Config struct {
	// Routes names the redirect targets. Zero value means DefaultRoutes.
	Routes Routes

	// PollInterval bounds the credential-presence watcher. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Client is the main entry point: it carries the injected
// implementations that the store, arbiter and coordinator consume.
type Client struct {
	config        Config
	logger        *slog.Logger
	credentials   CredentialStore
	fetcher       ContextFetcher
	auth          AuthBackend
	impersonation ImpersonationBackend
	navigator     Navigator
	cache         RequestCache
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCredentialStore sets the durable credential slot.
func WithCredentialStore(s CredentialStore) Option {
	return func(c *Client) { c.credentials = s }
}

// WithContextFetcher sets the context fetch implementation.
func WithContextFetcher(f ContextFetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

// WithAuthBackend sets the credential exchange implementation.
func WithAuthBackend(a AuthBackend) Option {
	return func(c *Client) { c.auth = a }
}

// WithImpersonationBackend sets the impersonation action implementation.
func WithImpersonationBackend(i ImpersonationBackend) Option {
	return func(c *Client) { c.impersonation = i }
}

// WithNavigator sets the full-page navigation implementation.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithRequestCache sets the cross-cutting request cache to invalidate
// on identity-affecting transitions.
func WithRequestCache(rc RequestCache) Option {
	return func(c *Client) { c.cache = rc }
}

// NewClient creates a new session engine client with the given
// configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Routes == (Routes{}) {
		cfg.Routes = DefaultRoutes()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	c := &Client{config: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.credentials == nil {
		return nil, fmt.Errorf("session: a CredentialStore is required")
	}
	if c.fetcher == nil {
		return nil, fmt.Errorf("session: a ContextFetcher is required")
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the configured logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Credentials returns the credential store.
func (c *Client) Credentials() CredentialStore { return c.credentials }

// Fetcher returns the context fetcher.
func (c *Client) Fetcher() ContextFetcher { return c.fetcher }

// Auth returns the auth backend, or nil if not configured.
func (c *Client) Auth() AuthBackend { return c.auth }

// Impersonation returns the impersonation backend, or nil if not configured.
func (c *Client) Impersonation() ImpersonationBackend { return c.impersonation }

// Navigator returns the navigator, or nil if not configured.
func (c *Client) Navigator() Navigator { return c.navigator }

// Cache returns the request cache, or nil if not configured.
func (c *Client) Cache() RequestCache { return c.cache }

// Close releases all resources held by the client. Any injected
// implementation that implements io.Closer will be closed.
func (c *Client) Close() error {
	closers := []interface{}{
		c.credentials, c.fetcher, c.auth,
		c.impersonation, c.navigator, c.cache,
	}
	var firstErr error
	for _, svc := range closers {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
