package session

import "context"

// CredentialStore holds the bearer token in durable storage. It is the
// only place allowed to touch durable storage for the session.
// Operations are total: there is no failure mode, only presence or
// absence. Implementations: credstore/ (memory, file), fake/.
type CredentialStore interface {
	// Get returns the stored token, or "" if none is present.
	Get() string

	// Set stores the token, replacing any previous value.
	Set(token string)

	// Clear removes the token.
	Clear()
}

// ContextFetcher asks the origin "who am I, what do I belong to, and am
// I impersonating anyone" and normalizes the answer into the canonical
// payload. Implementations: fetch/ (HTTP), fake/.
type ContextFetcher interface {
	// FetchContext performs one context fetch with the given bearer
	// token. Failures are *FetchError values.
	FetchContext(ctx context.Context, token string) (*ContextPayload, error)
}

// AuthBackend exchanges credentials for a bearer token and invalidates
// sessions server-side. Implementations: httpapi/, fake/.
type AuthBackend interface {
	// ExchangeCredentials trades email+password for a bearer token.
	// Rejected credentials are an *AuthError.
	ExchangeCredentials(ctx context.Context, email, password string) (string, error)

	// Invalidate revokes the token server-side. Best effort: callers
	// log failures and proceed with the local teardown regardless.
	Invalidate(ctx context.Context, token string) error
}

// ImpersonationBackend drives the admin impersonation endpoints and the
// ordinary tenant switch. Rejections are *ActionError values.
// Implementations: httpapi/, fake/.
type ImpersonationBackend interface {
	// StartImpersonation begins acting as a user of the given tenant.
	// The reason is recorded server-side for the audit trail.
	StartImpersonation(ctx context.Context, tenantID, reason string) error

	// StopImpersonation ends the active impersonation session.
	StopImpersonation(ctx context.Context) error

	// SetImpersonationTenant moves the tenant axis of an active
	// impersonation session without changing the acting identity.
	SetImpersonationTenant(ctx context.Context, tenantID string) error

	// SwitchTenant switches the selected tenant outside impersonation.
	SwitchTenant(ctx context.Context, tenantID string) error
}

// Navigator performs full-page navigations on behalf of the engine.
// A full navigation tears down the whole document context, cancelling
// every pending subscription and in-flight request made under the
// previous identity; the host decides what that means (browser shell
// reload, portal process restart, test recorder).
type Navigator interface {
	// Navigate performs a full navigation to target. It does not
	// return an error: once issued, the navigation owns the outcome.
	Navigate(target string)
}

// RequestCache is the cross-cutting cache for all non-session data,
// shared platform-wide. Identity-affecting transitions must flush it
// completely so one identity's cached reads never leak into another
// identity's view. Implementations: cache/ (memory), cache/rediscache.
type RequestCache interface {
	// InvalidateAll removes every cached entry.
	InvalidateAll(ctx context.Context) error
}

// SnapshotSource provides the current session snapshot. The session
// store is the canonical implementation; middleware and adapters accept
// the interface so tests can hand them literal snapshots.
type SnapshotSource interface {
	Snapshot() Snapshot
}
