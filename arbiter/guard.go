package arbiter

import (
	"log/slog"
	"sync"

	session "github.com/plazaops/session-go"
	"github.com/plazaops/session-go/metrics"
)

// LayoutGuard is the safety-net check for layout branches that are
// logically incompatible with impersonation (the platform-admin
// layout). If such a branch observes an active overlay at render time,
// the guard tells it to render a transient "redirecting" placeholder
// and hands it the same redirect target the arbiter would have chosen.
//
// This is a redundancy for the window where the arbiter has not run
// yet, not a second authority: the guard carries its own epoch-scoped
// latch, and the invariant violation is logged once per epoch.
type LayoutGuard struct {
	routes session.Routes
	logger *slog.Logger
	met    *metrics.Metrics

	mu          sync.Mutex
	epochActive bool
	latched     bool
	logged      bool
}

// NewLayoutGuard creates a guard over the given routes.
func NewLayoutGuard(routes session.Routes, opts ...Option) *LayoutGuard {
	// Reuse arbiter options for logger and metrics wiring.
	carrier := New(routes, opts...)
	return &LayoutGuard{
		routes: routes,
		logger: carrier.logger,
		met:    carrier.met,
	}
}

// Check is called by the incompatible layout at render time. When
// placeholder is true the layout must render its transient
// "redirecting" state instead of real content; redirect, if non-nil,
// is the fallback navigation to issue (once per epoch).
func (g *LayoutGuard) Check(snap session.Snapshot) (placeholder bool, redirect *Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if snap.Impersonation.Active != g.epochActive {
		g.epochActive = snap.Impersonation.Active
		g.latched = false
		g.logged = false
	}

	if !snap.Ready || !snap.Impersonation.Active {
		return false, nil
	}

	if !g.logged {
		g.logged = true
		g.logger.Warn("platform layout rendered while impersonating; falling back to guard redirect")
	}

	if g.latched {
		return true, nil
	}
	g.latched = true

	target := g.routes.TenantSelect
	if snap.Impersonation.Tenant != nil {
		target = g.routes.AppRoot
	}
	g.met.RecordRedirect(RuleLayoutGuard)
	return true, &Decision{Target: target, Rule: RuleLayoutGuard}
}
