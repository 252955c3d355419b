package derive

import (
	"testing"

	session "github.com/plazaops/session-go"
)

func adminSnapshot(memberships ...session.TenantMembership) session.Snapshot {
	return session.Snapshot{
		User:          &session.User{ID: "admin", Email: "admin@plaza.test", IsPlatformAdmin: true},
		Memberships:   memberships,
		Impersonation: session.EmptyImpersonation(),
		Ready:         true,
	}
}

func memberSnapshot(memberships ...session.TenantMembership) session.Snapshot {
	return session.Snapshot{
		User:          &session.User{ID: "u1", Email: "u1@plaza.test"},
		Memberships:   memberships,
		Impersonation: session.EmptyImpersonation(),
		Ready:         true,
	}
}

func impersonatingSnapshot(tenant *session.ImpersonatedTenant, role string) session.Snapshot {
	snap := adminSnapshot()
	snap.Impersonation = session.ImpersonationState{
		Active:     true,
		TargetUser: &session.ImpersonatedUser{ID: "target"},
		Tenant:     tenant,
		Role:       role,
	}
	return snap
}

func TestNavModeOf_PlatformAdminWithoutMemberships(t *testing.T) {
	if got := NavModeOf(adminSnapshot()); got != session.NavPlatformOnly {
		t.Errorf("expected platform_only, got %s", got)
	}
}

func TestNavModeOf_PlatformAdminWithMemberships(t *testing.T) {
	snap := adminSnapshot(session.TenantMembership{TenantID: "t1", Role: "owner"})
	if got := NavModeOf(snap); got != session.NavTenant {
		t.Errorf("expected tenant, got %s", got)
	}
}

func TestNavModeOf_ImpersonationWinsOverEverything(t *testing.T) {
	snap := impersonatingSnapshot(nil, "")
	if got := NavModeOf(snap); got != session.NavImpersonating {
		t.Errorf("expected impersonating, got %s", got)
	}
}

func TestNavModeOf_OrdinaryMember(t *testing.T) {
	snap := memberSnapshot(session.TenantMembership{TenantID: "t1"})
	if got := NavModeOf(snap); got != session.NavTenant {
		t.Errorf("expected tenant, got %s", got)
	}
}

func TestNavModeOf_EmptySnapshot(t *testing.T) {
	if got := NavModeOf(session.EmptySnapshot()); got != session.NavTenant {
		t.Errorf("expected tenant for empty snapshot, got %s", got)
	}
}

func TestCurrentTenant_MatchingMembership(t *testing.T) {
	snap := memberSnapshot(
		session.TenantMembership{TenantID: "t1", TenantName: "Oakville", Role: "member"},
		session.TenantMembership{TenantID: "t2", TenantName: "Birch", Role: "owner"},
	)

	got := CurrentTenant(snap, "t2")
	if got == nil || got.TenantName != "Birch" || got.Role != "owner" {
		t.Errorf("expected Birch membership, got %+v", got)
	}
}

func TestCurrentTenant_NoMatchReturnsNil(t *testing.T) {
	snap := memberSnapshot(session.TenantMembership{TenantID: "t1"})
	if got := CurrentTenant(snap, "t9"); got != nil {
		t.Errorf("expected nil for unknown tenant, got %+v", got)
	}
}

func TestCurrentTenant_SynthesizedDuringImpersonation(t *testing.T) {
	snap := impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t9", Name: "Cedar", Slug: "cedar"}, "")

	got := CurrentTenant(snap, "t9")
	if got == nil {
		t.Fatal("expected synthesized membership")
	}
	if got.TenantID != "t9" || got.TenantSlug != "cedar" {
		t.Errorf("unexpected synthesized tenant: %+v", got)
	}
	if got.Role != ImpersonationRole {
		t.Errorf("expected elevated role %q, got %q", ImpersonationRole, got.Role)
	}
}

func TestCurrentTenant_SynthesisKeepsExplicitRole(t *testing.T) {
	snap := impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t9"}, "admin")

	got := CurrentTenant(snap, "t9")
	if got == nil || got.Role != "admin" {
		t.Errorf("expected role from overlay, got %+v", got)
	}
}

func TestCurrentTenant_RealMembershipWinsOverSynthesis(t *testing.T) {
	snap := impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t1", Name: "Overlay"}, "")
	snap.Memberships = []session.TenantMembership{
		{TenantID: "t1", TenantName: "Real", Role: "member"},
	}

	got := CurrentTenant(snap, "t1")
	if got == nil || got.TenantName != "Real" {
		t.Errorf("expected the real membership, got %+v", got)
	}
}

func TestCurrentTenant_InactiveOverlayNeverSynthesizes(t *testing.T) {
	snap := memberSnapshot()
	if got := CurrentTenant(snap, "t9"); got != nil {
		t.Errorf("expected nil without impersonation, got %+v", got)
	}
}

func TestCurrentTenant_EmptySelection(t *testing.T) {
	snap := impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t9"}, "")
	if got := CurrentTenant(snap, ""); got != nil {
		t.Errorf("expected nil for empty selection, got %+v", got)
	}
}

func TestDerivation_Purity(t *testing.T) {
	snap := impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t9", Name: "Cedar"}, "")

	for i := 0; i < 5; i++ {
		if NavModeOf(snap) != session.NavImpersonating {
			t.Fatal("NavModeOf changed across identical calls")
		}
		got := CurrentTenant(snap, "t9")
		if got == nil || *got != *CurrentTenant(snap, "t9") {
			t.Fatal("CurrentTenant changed across identical calls")
		}
	}
}

func TestHasTenantMemberships(t *testing.T) {
	if HasTenantMemberships(memberSnapshot()) {
		t.Error("expected false for zero memberships")
	}
	if !HasTenantMemberships(memberSnapshot(session.TenantMembership{TenantID: "t1"})) {
		t.Error("expected true with one membership")
	}
}
