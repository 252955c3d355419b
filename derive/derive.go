// Package derive computes navigation facts from a session snapshot.
// Every function is pure: same snapshot in, same answer out, no side
// effects and no hidden state.
package derive

import (
	session "github.com/plazaops/session-go"
)

// ImpersonationRole is the elevated role assumed when synthesizing a
// membership for a tenant the impersonating admin does not personally
// belong to.
const ImpersonationRole = "tenant_admin"

// NavModeOf returns which navigational surface applies to the snapshot.
// The impersonation overlay wins over everything; a platform admin with
// no memberships of their own gets the platform-only surface; everyone
// else navigates tenant-scoped.
func NavModeOf(snap session.Snapshot) session.NavMode {
	if snap.Impersonation.Active {
		return session.NavImpersonating
	}
	if snap.User != nil && snap.User.IsPlatformAdmin && len(snap.Memberships) == 0 {
		return session.NavPlatformOnly
	}
	return session.NavTenant
}

// CurrentTenant resolves the selected tenant id against the snapshot's
// memberships. If no membership matches but an active impersonation
// session targets that tenant, a membership-shaped record is
// synthesized from the overlay with an elevated role, since
// impersonation can target a tenant the admin does not belong to.
// Otherwise nil.
func CurrentTenant(snap session.Snapshot, selectedTenantID string) *session.TenantMembership {
	if selectedTenantID == "" {
		return nil
	}

	for i := range snap.Memberships {
		if snap.Memberships[i].TenantID == selectedTenantID {
			m := snap.Memberships[i]
			return &m
		}
	}

	imp := snap.Impersonation
	if imp.Active && imp.Tenant != nil && imp.Tenant.ID == selectedTenantID {
		role := imp.Role
		if role == "" {
			role = ImpersonationRole
		}
		return &session.TenantMembership{
			TenantID:   imp.Tenant.ID,
			TenantName: imp.Tenant.Name,
			TenantSlug: imp.Tenant.Slug,
			Role:       role,
		}
	}
	return nil
}

// HasTenantMemberships reports whether the snapshot carries at least
// one tenant membership.
func HasTenantMemberships(snap session.Snapshot) bool {
	return len(snap.Memberships) > 0
}
