package session

import "time"

// User is the stable account identity as reported by the context
// endpoint. It is a read-only projection; nothing in this SDK mutates it.
type User struct {
	ID              string
	Email           string
	DisplayName     string
	IsPlatformAdmin bool
}

// TenantType classifies a tenant organization.
type TenantType string

const (
	TenantCommunity  TenantType = "community"
	TenantGovernment TenantType = "government"
	TenantBusiness   TenantType = "business"
	TenantIndividual TenantType = "individual"
)

// TenantMembership is a (tenant, role) pairing held by a user.
// Memberships are server-owned; the client only reads and selects
// among them.
type TenantMembership struct {
	TenantID   string
	TenantName string
	TenantSlug string
	TenantType TenantType
	Role       string
	IsPrimary  bool
}

// ImpersonatedUser identifies whose identity is being worn during an
// impersonation session.
type ImpersonatedUser struct {
	ID          string
	Email       string
	DisplayName string
}

// ImpersonatedTenant is the tenant context active during impersonation.
// It is an independent axis: it may be unset even while Active is true.
type ImpersonatedTenant struct {
	ID   string
	Name string
	Slug string
}

// ImpersonationState is the overlay describing an admin-initiated
// "act as" session. Invariant: Active == false implies every other
// field is unset. Always obtain the inactive value from
// EmptyImpersonation; never build it by hand.
type ImpersonationState struct {
	Active     bool
	TargetUser *ImpersonatedUser
	Tenant     *ImpersonatedTenant
	Role       string
	ExpiresAt  *time.Time
}

// EmptyImpersonation returns the canonical inactive overlay. Every call
// returns a structurally identical value with all optional fields unset.
func EmptyImpersonation() ImpersonationState {
	return ImpersonationState{}
}

// Snapshot is the session state held by the store: who is acting, what
// they belong to, and whether an impersonation overlay is active.
//
// Ready transitions exactly once from false to true per login cycle
// (after the first context fetch resolves) and is reset to false on
// logout. Consumers must not make redirect decisions before Ready.
type Snapshot struct {
	User          *User
	Memberships   []TenantMembership
	Impersonation ImpersonationState
	Ready         bool
	Loading       bool
}

// EmptySnapshot returns the canonical unauthenticated snapshot.
func EmptySnapshot() Snapshot {
	return Snapshot{Impersonation: EmptyImpersonation()}
}

// UserID returns the account identity's id, or "" when unauthenticated.
func (s Snapshot) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// ActingUserID returns the effective acting identity: the impersonation
// target while the overlay is active, otherwise the account identity.
func (s Snapshot) ActingUserID() string {
	if s.Impersonation.Active && s.Impersonation.TargetUser != nil {
		return s.Impersonation.TargetUser.ID
	}
	return s.UserID()
}

// NavMode describes which navigational surface applies to a snapshot.
type NavMode string

const (
	// NavPlatformOnly: a platform admin with no tenant memberships of
	// their own; only the platform-admin surface applies.
	NavPlatformOnly NavMode = "platform_only"

	// NavTenant: ordinary tenant-scoped navigation.
	NavTenant NavMode = "tenant"

	// NavImpersonating: the impersonation overlay is active.
	NavImpersonating NavMode = "impersonating"
)

// ContextPayload is the normalized result of one context fetch: the
// canonical {user, memberships, impersonation} triple regardless of
// which wire format the origin spoke.
type ContextPayload struct {
	User          User
	Memberships   []TenantMembership
	Impersonation ImpersonationState
}
