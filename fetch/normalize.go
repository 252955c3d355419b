package fetch

import (
	"time"

	session "github.com/plazaops/session-go"
)

// The origin's response shape evolved over time. Two wire formats are
// recognized: the canonical one carrying an "impersonation" object, and
// a legacy one carrying discrete "is_impersonating" and
// "impersonated_tenant" fields. A payload is normalized through exactly
// one of the two paths; fields are never mixed across formats.

type wirePayload struct {
	OK          bool             `json:"ok"`
	User        wireUser         `json:"user"`
	Memberships []wireMembership `json:"memberships"`

	// Canonical format.
	Impersonation *wireImpersonation `json:"impersonation"`

	// Legacy format.
	IsImpersonating    bool              `json:"is_impersonating"`
	ImpersonatedTenant *wireLegacyTenant `json:"impersonated_tenant"`
}

type wireUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
}

type wireMembership struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	TenantSlug string `json:"tenant_slug"`
	TenantType string `json:"tenant_type"`
	Role       string `json:"role"`
	IsPrimary  bool   `json:"is_primary"`
}

type wireImpersonation struct {
	Active     bool            `json:"active"`
	TargetUser *wireTargetUser `json:"target_user"`
	TenantID   string          `json:"tenant_id"`
	TenantName string          `json:"tenant_name"`
	TenantSlug string          `json:"tenant_slug"`
	Role       string          `json:"role"`
	ExpiresAt  string          `json:"expires_at"`
}

type wireTargetUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type wireLegacyTenant struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	TenantSlug string `json:"tenant_slug"`
}

func normalize(wire wirePayload) *session.ContextPayload {
	payload := &session.ContextPayload{
		User: session.User{
			ID:              wire.User.ID,
			Email:           wire.User.Email,
			DisplayName:     wire.User.FullName,
			IsPlatformAdmin: wire.User.IsPlatformAdmin,
		},
		Memberships:   make([]session.TenantMembership, 0, len(wire.Memberships)),
		Impersonation: normalizeImpersonation(wire),
	}
	for _, m := range wire.Memberships {
		payload.Memberships = append(payload.Memberships, session.TenantMembership{
			TenantID:   m.TenantID,
			TenantName: m.TenantName,
			TenantSlug: m.TenantSlug,
			TenantType: session.TenantType(m.TenantType),
			Role:       m.Role,
			IsPrimary:  m.IsPrimary,
		})
	}
	return payload
}

func normalizeImpersonation(wire wirePayload) session.ImpersonationState {
	switch {
	case wire.Impersonation != nil:
		return parseImpersonation(*wire.Impersonation)
	case wire.IsImpersonating:
		return synthesizeLegacy(wire.ImpersonatedTenant)
	default:
		return session.EmptyImpersonation()
	}
}

// parseImpersonation is the canonical parser: every absent field
// defaults, and an inactive object collapses to the empty constant no
// matter what else it carries.
func parseImpersonation(w wireImpersonation) session.ImpersonationState {
	if !w.Active {
		return session.EmptyImpersonation()
	}

	st := session.ImpersonationState{Active: true, Role: w.Role}
	if w.TargetUser != nil {
		st.TargetUser = &session.ImpersonatedUser{
			ID:          w.TargetUser.ID,
			Email:       w.TargetUser.Email,
			DisplayName: w.TargetUser.DisplayName,
		}
	}
	if w.TenantID != "" {
		st.Tenant = &session.ImpersonatedTenant{
			ID:   w.TenantID,
			Name: w.TenantName,
			Slug: w.TenantSlug,
		}
	}
	if w.ExpiresAt != "" {
		if ts, err := time.Parse(time.RFC3339, w.ExpiresAt); err == nil {
			st.ExpiresAt = &ts
		}
	}
	return st
}

// synthesizeLegacy translates the legacy discrete fields into the
// canonical shape. The legacy format never carried the target user or
// an expiry; those stay unset.
func synthesizeLegacy(tenant *wireLegacyTenant) session.ImpersonationState {
	st := session.ImpersonationState{Active: true}
	if tenant != nil && tenant.TenantID != "" {
		st.Tenant = &session.ImpersonatedTenant{
			ID:   tenant.TenantID,
			Name: tenant.TenantName,
			Slug: tenant.TenantSlug,
		}
	}
	return st
}
