// Package fetch provides the HTTP ContextFetcher: one network call that
// asks the origin "who am I, what do I belong to, and am I
// impersonating anyone" and normalizes the answer to the canonical
// payload shape.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	session "github.com/plazaops/session-go"
)

// ContextPath is the origin's context endpoint.
const ContextPath = "/api/me/context"

// Fetcher implements session.ContextFetcher over HTTP.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ session.ContextFetcher = (*Fetcher)(nil)

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client for context requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a context fetcher against baseURL (scheme and host, no
// trailing slash required).
func New(baseURL string, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FetchContext performs one context fetch with the given bearer token.
//
// Classification: 401 is FetchUnauthorized (the token is dead); any
// other non-2xx status or a transport failure is FetchNetwork
// (transient); a 2xx with a non-JSON content type, an undecodable body,
// or ok=false is FetchMalformed.
func (f *Fetcher) FetchContext(ctx context.Context, token string) (*session.ContextPayload, error) {
	if token == "" {
		return nil, session.NewFetchError(session.FetchUnauthorized, fmt.Errorf("session/fetch: empty token"))
	}

	requestID := uuid.NewString()
	log := f.logger.With("request_id", requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+ContextPath, nil)
	if err != nil {
		return nil, session.NewFetchError(session.FetchNetwork, fmt.Errorf("session/fetch: build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Warn("context fetch transport failure", "error", err)
		return nil, session.NewFetchError(session.FetchNetwork, fmt.Errorf("session/fetch: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		log.Info("context fetch rejected", "status", resp.StatusCode)
		return nil, session.NewFetchError(session.FetchUnauthorized, fmt.Errorf("session/fetch: origin returned 401"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("context fetch failed", "status", resp.StatusCode)
		return nil, session.NewFetchError(session.FetchNetwork, fmt.Errorf("session/fetch: origin returned %d", resp.StatusCode))
	}

	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		log.Warn("context fetch returned non-JSON body", "content_type", resp.Header.Get("Content-Type"))
		return nil, session.NewFetchError(session.FetchMalformed, fmt.Errorf("session/fetch: unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, session.NewFetchError(session.FetchNetwork, fmt.Errorf("session/fetch: read body: %w", err))
	}

	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, session.NewFetchError(session.FetchMalformed, fmt.Errorf("session/fetch: decode body: %w", err))
	}
	if !wire.OK {
		return nil, session.NewFetchError(session.FetchMalformed, fmt.Errorf("session/fetch: origin reported ok=false"))
	}
	if wire.User.ID == "" {
		return nil, session.NewFetchError(session.FetchMalformed, fmt.Errorf("session/fetch: payload missing user"))
	}

	payload := normalize(wire)
	log.Debug("context fetch resolved",
		"user_id", payload.User.ID,
		"memberships", len(payload.Memberships),
		"impersonating", payload.Impersonation.Active)
	return payload, nil
}
