package session

import (
	"errors"
	"fmt"
)

// AuthError reports rejected credentials during login. The session is
// left untouched; surface it at the login form.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: authentication failed: %s", e.Reason)
}

// FetchKind classifies a context-fetch failure.
type FetchKind int

const (
	// FetchUnauthorized: the origin rejected the token (401). The
	// credential must be cleared and the store reset.
	FetchUnauthorized FetchKind = iota

	// FetchMalformed: 2xx with a body that is not structured data, or
	// structured data that does not decode. Transient; snapshot retained.
	FetchMalformed

	// FetchNetwork: transport failure before a response arrived.
	// Transient; snapshot retained.
	FetchNetwork
)

func (k FetchKind) String() string {
	switch k {
	case FetchUnauthorized:
		return "unauthorized"
	case FetchMalformed:
		return "malformed"
	case FetchNetwork:
		return "network"
	}
	return "unknown"
}

// FetchError reports a failed context fetch.
type FetchError struct {
	Kind FetchKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: context fetch %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("session: context fetch %s", e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with a fetch failure classification.
func NewFetchError(kind FetchKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

// IsUnauthorized reports whether err is a FetchError with
// FetchUnauthorized, i.e. the token itself was rejected.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchUnauthorized
}

// IsTransientFetch reports whether err is a fetch failure that left the
// previous snapshot intact (malformed response or transport failure).
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind != FetchUnauthorized
}

// ActionError reports a rejected impersonation or tenant-switch action.
// No navigation occurs; surface it inline at the point of action.
type ActionError struct {
	Action string // "start", "stop", "set_tenant", "switch_tenant"
	Reason string
	Err    error
}

func (e *ActionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("session: %s rejected: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("session: %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
