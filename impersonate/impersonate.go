// Package impersonate coordinates the admin "act as" actions: starting
// and stopping impersonation, and moving its tenant axis.
//
// Start and Stop change the effective identity for every subsequent
// request, so both end in a full navigation rather than an in-memory
// state swap: an in-place transition would leave stale per-component
// subscriptions holding data fetched under the previous identity. The
// page teardown is the cancellation mechanism for everything in flight.
// SetTenant moves only the tenant axis and settles for an in-place
// store refresh.
package impersonate

import (
	"context"
	"log/slog"

	session "github.com/plazaops/session-go"
	"github.com/plazaops/session-go/audit"
	"github.com/plazaops/session-go/metrics"
	"github.com/plazaops/session-go/store"
)

// Listener is told when a blocking identity transition begins or ends.
// It is a decision, not a rendering: the presentation layer chooses
// what a blocking indicator looks like. For transitions that end in a
// full navigation the "end" call only happens on failure; success is
// ended by the navigation itself.
type Listener func(action string, inProgress bool)

// Actions reported to the Listener and the audit trail.
const (
	ActionStart        = "start"
	ActionStop         = "stop"
	ActionSetTenant    = "set_tenant"
	ActionSwitchTenant = "switch_tenant"
)

// Coordinator drives the impersonation backend and owns the
// full-reload versus soft-refresh decision per action.
type Coordinator struct {
	client   *session.Client
	store    *store.Store
	logger   *slog.Logger
	met      *metrics.Metrics
	aud      *audit.Logger
	listener Listener
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.met = m }
}

// WithAudit attaches an audit logger.
func WithAudit(a *audit.Logger) Option {
	return func(c *Coordinator) { c.aud = a }
}

// WithListener sets the blocking-transition listener.
func WithListener(l Listener) Option {
	return func(c *Coordinator) { c.listener = l }
}

// New creates a coordinator over the client's impersonation backend and
// the session store.
func New(client *session.Client, st *store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		store:  st,
		logger: client.Logger(),
		met:    metrics.New(false),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins impersonating a user of the given tenant. On success the
// cross-cutting cache is flushed and a full navigation to the app root
// is issued. On failure nothing changes and the error is surfaced.
func (c *Coordinator) Start(ctx context.Context, tenantID, reason string) error {
	backend := c.client.Impersonation()
	if backend == nil {
		return &session.ActionError{Action: ActionStart, Reason: "no impersonation backend configured"}
	}

	actor := c.store.Snapshot().UserID()
	c.begin(ActionStart)

	if err := backend.StartImpersonation(ctx, tenantID, reason); err != nil {
		c.fail(ActionStart, audit.Event{ActorID: actor, TenantID: tenantID, Reason: reason}, err)
		return err
	}

	c.met.RecordAction(ActionStart, "success")
	c.auditLog(audit.Event{
		Action:   audit.ActionImpersonationStart,
		Result:   audit.ResultSuccess,
		ActorID:  actor,
		TenantID: tenantID,
		Reason:   reason,
	})
	c.invalidateCache(ctx)
	c.navigate(c.client.Config().Routes.AppRoot)
	return nil
}

// Stop ends the active impersonation session. On success the
// cross-cutting cache is flushed and a full navigation back to the
// platform tenant-management route is issued. On failure the error is
// surfaced and no navigation occurs.
func (c *Coordinator) Stop(ctx context.Context) error {
	backend := c.client.Impersonation()
	if backend == nil {
		return &session.ActionError{Action: ActionStop, Reason: "no impersonation backend configured"}
	}

	actor := c.store.Snapshot().UserID()
	c.begin(ActionStop)

	if err := backend.StopImpersonation(ctx); err != nil {
		c.fail(ActionStop, audit.Event{ActorID: actor}, err)
		return err
	}

	c.met.RecordAction(ActionStop, "success")
	c.auditLog(audit.Event{
		Action:  audit.ActionImpersonationStop,
		Result:  audit.ResultSuccess,
		ActorID: actor,
	})
	c.invalidateCache(ctx)
	c.navigate(c.client.Config().Routes.TenantManagement)
	return nil
}

// SetTenant moves the tenant axis of an active impersonation session.
// Valid only while impersonating. The acting identity is unchanged, so
// a store refresh replaces the full reload: faster, and safe because
// nothing identity-scoped went stale.
func (c *Coordinator) SetTenant(ctx context.Context, tenantID string) error {
	backend := c.client.Impersonation()
	if backend == nil {
		return &session.ActionError{Action: ActionSetTenant, Reason: "no impersonation backend configured"}
	}

	snap := c.store.Snapshot()
	if !snap.Impersonation.Active {
		return &session.ActionError{Action: ActionSetTenant, Reason: "not impersonating"}
	}

	if err := backend.SetImpersonationTenant(ctx, tenantID); err != nil {
		c.met.RecordAction(ActionSetTenant, "failure")
		c.auditLog(audit.Event{
			Action:   audit.ActionImpersonationMove,
			Result:   audit.ResultFailure,
			ActorID:  snap.UserID(),
			TenantID: tenantID,
			Error:    err.Error(),
		})
		return err
	}

	c.met.RecordAction(ActionSetTenant, "success")
	c.auditLog(audit.Event{
		Action:   audit.ActionImpersonationMove,
		Result:   audit.ResultSuccess,
		ActorID:  snap.UserID(),
		TenantID: tenantID,
	})

	if _, err := c.store.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after impersonation tenant move failed", "error", err)
	}
	return nil
}

// SwitchTenant switches the selected tenant outside impersonation via
// the ordinary tenant-switch endpoint. Valid only while not
// impersonating; the impersonation tenant axis moves through SetTenant.
func (c *Coordinator) SwitchTenant(ctx context.Context, tenantID string) error {
	backend := c.client.Impersonation()
	if backend == nil {
		return &session.ActionError{Action: ActionSwitchTenant, Reason: "no impersonation backend configured"}
	}

	snap := c.store.Snapshot()
	if snap.Impersonation.Active {
		return &session.ActionError{Action: ActionSwitchTenant, Reason: "impersonating; use SetTenant"}
	}

	if err := backend.SwitchTenant(ctx, tenantID); err != nil {
		c.met.RecordAction(ActionSwitchTenant, "failure")
		return err
	}

	c.met.RecordAction(ActionSwitchTenant, "success")
	c.auditLog(audit.Event{
		Action:   audit.ActionTenantSwitch,
		Result:   audit.ResultSuccess,
		ActorID:  snap.UserID(),
		TenantID: tenantID,
	})

	if _, err := c.store.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after tenant switch failed", "error", err)
	}
	return nil
}

func (c *Coordinator) begin(action string) {
	if c.listener != nil {
		c.listener(action, true)
	}
}

func (c *Coordinator) fail(action string, e audit.Event, err error) {
	if c.listener != nil {
		c.listener(action, false)
	}
	c.met.RecordAction(action, "failure")
	switch action {
	case ActionStart:
		e.Action = audit.ActionImpersonationStart
	case ActionStop:
		e.Action = audit.ActionImpersonationStop
	}
	e.Result = audit.ResultFailure
	e.Error = err.Error()
	c.auditLog(e)
}

func (c *Coordinator) invalidateCache(ctx context.Context) {
	if cache := c.client.Cache(); cache != nil {
		if err := cache.InvalidateAll(ctx); err != nil {
			c.logger.Warn("request cache flush failed on identity transition", "error", err)
		}
	}
}

func (c *Coordinator) navigate(target string) {
	if nav := c.client.Navigator(); nav != nil {
		nav.Navigate(target)
	}
}

func (c *Coordinator) auditLog(e audit.Event) {
	if c.aud != nil {
		c.aud.Log(e)
	}
}
