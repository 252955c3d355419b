// Package fake provides an in-memory origin implementing the
// ContextFetcher, AuthBackend and ImpersonationBackend contracts.
//
// Use fake.New in unit tests and examples to exercise the whole engine
// without network calls or an external origin.
package fake

import (
	"context"
	"fmt"
	"sync"

	session "github.com/plazaops/session-go"
)

type account struct {
	password    string
	user        session.User
	memberships []session.TenantMembership
}

type impSession struct {
	tenant *session.ImpersonatedTenant
	target *session.ImpersonatedUser
	role   string
}

// Backend is the in-memory origin. The injected credential store plays
// the role the bearer header plays for the HTTP backend: action calls
// authenticate with whatever token it currently holds.
type Backend struct {
	credentials session.CredentialStore

	mu            sync.Mutex
	accounts      map[string]*account                   // email -> account
	tokens        map[string]string                     // token -> email
	tenants       map[string]session.ImpersonatedTenant // tenantID -> tenant
	impersonation map[string]*impSession                // token -> overlay
	fetchErr      error
	nextToken     int
}

var (
	_ session.ContextFetcher       = (*Backend)(nil)
	_ session.AuthBackend          = (*Backend)(nil)
	_ session.ImpersonationBackend = (*Backend)(nil)
)

// Option configures the fake origin.
type Option func(*Backend)

// WithAccount adds an account with credentials and memberships.
func WithAccount(email, password string, user session.User, memberships ...session.TenantMembership) Option {
	return func(b *Backend) {
		b.accounts[email] = &account{
			password:    password,
			user:        user,
			memberships: memberships,
		}
	}
}

// WithTenant registers a tenant impersonation can target.
func WithTenant(id, name, slug string) Option {
	return func(b *Backend) {
		b.tenants[id] = session.ImpersonatedTenant{ID: id, Name: name, Slug: slug}
	}
}

// WithSession seeds an already-issued token for an account, as if a
// login had happened elsewhere.
func WithSession(token, email string) Option {
	return func(b *Backend) {
		b.tokens[token] = email
	}
}

// New creates a fake origin.
func New(credentials session.CredentialStore, opts ...Option) *Backend {
	b := &Backend{
		credentials:   credentials,
		accounts:      make(map[string]*account),
		tokens:        make(map[string]string),
		tenants:       make(map[string]session.ImpersonatedTenant),
		impersonation: make(map[string]*impSession),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetFetchError injects a failure for subsequent context fetches; pass
// nil to heal.
func (b *Backend) SetFetchError(err error) {
	b.mu.Lock()
	b.fetchErr = err
	b.mu.Unlock()
}

// ExchangeCredentials trades email+password for a fresh token.
func (b *Backend) ExchangeCredentials(ctx context.Context, email, password string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[email]
	if !ok || acct.password != password {
		return "", &session.AuthError{Reason: "invalid email or password"}
	}

	b.nextToken++
	token := fmt.Sprintf("fake-token-%d", b.nextToken)
	b.tokens[token] = email
	return token, nil
}

// Invalidate revokes the token.
func (b *Backend) Invalidate(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
	delete(b.impersonation, token)
	return nil
}

// FetchContext returns the canonical payload for the token's account,
// including any active impersonation overlay.
func (b *Backend) FetchContext(ctx context.Context, token string) (*session.ContextPayload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fetchErr != nil {
		return nil, b.fetchErr
	}

	email, ok := b.tokens[token]
	if !ok {
		return nil, session.NewFetchError(session.FetchUnauthorized, fmt.Errorf("session/fake: unknown token"))
	}
	acct := b.accounts[email]
	if acct == nil {
		return nil, session.NewFetchError(session.FetchUnauthorized, fmt.Errorf("session/fake: account gone"))
	}

	payload := &session.ContextPayload{
		User:          acct.user,
		Memberships:   append([]session.TenantMembership(nil), acct.memberships...),
		Impersonation: session.EmptyImpersonation(),
	}
	if imp := b.impersonation[token]; imp != nil {
		payload.Impersonation = session.ImpersonationState{
			Active:     true,
			TargetUser: imp.target,
			Tenant:     imp.tenant,
			Role:       imp.role,
		}
	}
	return payload, nil
}

// StartImpersonation activates the overlay for the current token. An
// empty tenantID starts impersonation with the tenant axis unset, as
// origin-side admin flows can.
func (b *Backend) StartImpersonation(ctx context.Context, tenantID, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, token, err := b.currentAccount("start")
	if err != nil {
		return err
	}
	if !acct.user.IsPlatformAdmin {
		return &session.ActionError{Action: "start", Reason: "not a platform admin"}
	}

	imp := &impSession{role: "tenant_admin"}
	if tenantID != "" {
		tenant, ok := b.tenants[tenantID]
		if !ok {
			return &session.ActionError{Action: "start", Reason: "unknown tenant"}
		}
		imp.tenant = &tenant
	}
	b.impersonation[token] = imp
	return nil
}

// StopImpersonation clears the overlay for the current token.
func (b *Backend) StopImpersonation(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, token, err := b.currentAccount("stop")
	if err != nil {
		return err
	}
	if b.impersonation[token] == nil {
		return &session.ActionError{Action: "stop", Reason: "not impersonating"}
	}
	delete(b.impersonation, token)
	return nil
}

// SetImpersonationTenant moves the overlay's tenant axis.
func (b *Backend) SetImpersonationTenant(ctx context.Context, tenantID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, token, err := b.currentAccount("set_tenant")
	if err != nil {
		return err
	}
	imp := b.impersonation[token]
	if imp == nil {
		return &session.ActionError{Action: "set_tenant", Reason: "not impersonating"}
	}
	tenant, ok := b.tenants[tenantID]
	if !ok {
		return &session.ActionError{Action: "set_tenant", Reason: "unknown tenant"}
	}
	imp.tenant = &tenant
	return nil
}

// SwitchTenant validates membership for the ordinary tenant switch.
func (b *Backend) SwitchTenant(ctx context.Context, tenantID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, _, err := b.currentAccount("switch_tenant")
	if err != nil {
		return err
	}
	for _, m := range acct.memberships {
		if m.TenantID == tenantID {
			return nil
		}
	}
	return &session.ActionError{Action: "switch_tenant", Reason: "not a member of this tenant"}
}

// currentAccount resolves the credential store's token. Callers hold
// the lock.
func (b *Backend) currentAccount(action string) (*account, string, error) {
	token := b.credentials.Get()
	email, ok := b.tokens[token]
	if !ok {
		return nil, "", &session.ActionError{Action: action, Reason: "not authenticated"}
	}
	return b.accounts[email], token, nil
}
