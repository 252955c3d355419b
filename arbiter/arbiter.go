// Package arbiter owns the single redirect decision that reconciles the
// session state with the requested route.
//
// Exactly one component may redirect for any given pathname; every UI
// branch that would otherwise contain redirect logic delegates here.
// A one-shot latch scoped to the impersonation epoch prevents redirect
// storms: the latch re-arms only when impersonation.active toggles,
// never on a timer and never on unrelated re-evaluation.
package arbiter

import (
	"log/slog"
	"strings"
	"sync"

	session "github.com/plazaops/session-go"
	"github.com/plazaops/session-go/metrics"
)

// Decision rules, also used as metric labels.
const (
	RuleSelectTenant  = "select_tenant"
	RuleLeavePlatform = "leave_platform"
	RuleLayoutGuard   = "layout_guard"
)

// Decision is a redirect the arbiter has committed to.
type Decision struct {
	Target string
	Rule   string
}

// Arbiter evaluates (pathname, snapshot) pairs against the decision
// table. Safe for concurrent use.
type Arbiter struct {
	routes session.Routes
	logger *slog.Logger
	met    *metrics.Metrics

	mu            sync.Mutex
	epochActive   bool
	hasRedirected bool
}

// Option configures the Arbiter.
type Option func(*Arbiter)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Arbiter) { a.logger = l }
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Arbiter) { a.met = m }
}

// New creates an arbiter over the given routes.
func New(routes session.Routes, opts ...Option) *Arbiter {
	a := &Arbiter{
		routes: routes,
		logger: slog.Default(),
		met:    metrics.New(false),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Evaluate applies the decision table and returns the redirect to
// issue, or nil. At most one non-nil decision is returned per
// impersonation epoch; repeated evaluation with the same state is a
// no-op once the latch is set.
//
// Nothing fires before the snapshot is ready: premature decisions made
// against an unhydrated snapshot are exactly the redirect loops this
// component exists to prevent.
func (a *Arbiter) Evaluate(pathname string, snap session.Snapshot) *Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.syncEpochLocked(snap)

	if !snap.Ready || !snap.Impersonation.Active || a.hasRedirected {
		return nil
	}

	imp := snap.Impersonation
	switch {
	case imp.Tenant == nil && pathname != a.routes.TenantSelect:
		return a.fireLocked(pathname, RuleSelectTenant, a.routes.TenantSelect)
	case imp.Tenant != nil && strings.HasPrefix(pathname, a.routes.PlatformPrefix):
		return a.fireLocked(pathname, RuleLeavePlatform, a.routes.AppRoot)
	default:
		return nil
	}
}

// Latched reports whether the current epoch has already redirected.
func (a *Arbiter) Latched() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasRedirected
}

// syncEpochLocked re-arms the latch when impersonation.active toggles.
// Entering or leaving impersonation starts a new epoch.
func (a *Arbiter) syncEpochLocked(snap session.Snapshot) {
	if snap.Impersonation.Active != a.epochActive {
		a.epochActive = snap.Impersonation.Active
		a.hasRedirected = false
	}
}

func (a *Arbiter) fireLocked(pathname, rule, target string) *Decision {
	a.hasRedirected = true
	a.met.RecordRedirect(rule)
	a.logger.Info("redirect decided",
		"rule", rule,
		"from", pathname,
		"to", target)
	return &Decision{Target: target, Rule: rule}
}
