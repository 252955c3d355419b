// Package httpapi implements the AuthBackend and ImpersonationBackend
// contracts against the platform's HTTP control endpoints. Action
// requests carry the bearer token from the injected credential store;
// responses use the {ok, error} envelope.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	session "github.com/plazaops/session-go"
)

// Endpoint paths.
const (
	LoginPath        = "/api/auth/login"
	LogoutPath       = "/api/auth/logout"
	StartPath        = "/api/admin/impersonation/start"
	StopPath         = "/api/admin/impersonation/stop"
	SetTenantPath    = "/api/admin/impersonation/set-tenant"
	SwitchTenantPath = "/api/me/switch-tenant"
)

// Client talks to the platform control endpoints.
type Client struct {
	baseURL     string
	credentials session.CredentialStore
	httpClient  *http.Client
	logger      *slog.Logger
}

var (
	_ session.AuthBackend          = (*Client)(nil)
	_ session.ImpersonationBackend = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a control-endpoint client. The credential store supplies
// the bearer token for authenticated requests.
func New(baseURL string, credentials session.CredentialStore, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the {ok, error} response shape shared by all control
// endpoints; login additionally returns the token.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Token string `json:"token"`
}

// ExchangeCredentials trades email+password for a bearer token.
func (c *Client) ExchangeCredentials(ctx context.Context, email, password string) (string, error) {
	body, err := c.post(ctx, LoginPath, map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return "", fmt.Errorf("session/httpapi: login request failed: %w", err)
	}

	if !body.OK || body.Token == "" {
		reason := body.Error
		if reason == "" {
			reason = "credentials rejected"
		}
		return "", &session.AuthError{Reason: reason}
	}
	return body.Token, nil
}

// Invalidate revokes the token server-side.
func (c *Client) Invalidate(ctx context.Context, token string) error {
	if _, err := c.post(ctx, LogoutPath, nil, token); err != nil {
		return fmt.Errorf("session/httpapi: logout request failed: %w", err)
	}
	return nil
}

// StartImpersonation begins acting as a user of the given tenant.
func (c *Client) StartImpersonation(ctx context.Context, tenantID, reason string) error {
	return c.action(ctx, "start", StartPath, map[string]string{
		"tenant_id": tenantID,
		"reason":    reason,
	})
}

// StopImpersonation ends the active impersonation session.
func (c *Client) StopImpersonation(ctx context.Context) error {
	return c.action(ctx, "stop", StopPath, nil)
}

// SetImpersonationTenant moves the tenant axis of an active
// impersonation session. This is a dedicated endpoint, distinct from
// the ordinary tenant switch.
func (c *Client) SetImpersonationTenant(ctx context.Context, tenantID string) error {
	return c.action(ctx, "set_tenant", SetTenantPath, map[string]string{
		"tenant_id": tenantID,
	})
}

// SwitchTenant switches the selected tenant outside impersonation.
func (c *Client) SwitchTenant(ctx context.Context, tenantID string) error {
	return c.action(ctx, "switch_tenant", SwitchTenantPath, map[string]string{
		"tenant_id": tenantID,
	})
}

func (c *Client) action(ctx context.Context, name, path string, payload map[string]string) error {
	body, err := c.post(ctx, path, payload, c.credentials.Get())
	if err != nil {
		return &session.ActionError{Action: name, Err: err}
	}
	if !body.OK {
		reason := body.Error
		if reason == "" {
			reason = "rejected by origin"
		}
		return &session.ActionError{Action: name, Reason: reason}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string, token string) (*envelope, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Prefer the origin's error string when it sent one.
		if env.Error != "" {
			env.OK = false
			return &env, nil
		}
		return nil, fmt.Errorf("origin returned %d", resp.StatusCode)
	}
	return &env, nil
}
