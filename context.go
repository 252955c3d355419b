package session

import "context"

type ctxKey string

const (
	ctxKeyActingUserID  ctxKey = "session_acting_user_id"
	ctxKeyTenantID      ctxKey = "session_tenant_id"
	ctxKeySnapshot      ctxKey = "session_snapshot"
	ctxKeyImpersonation ctxKey = "session_impersonation"
)

// WithActingUserID stores the effective acting user ID in the context.
// During impersonation this is the target user, not the admin.
func WithActingUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyActingUserID, userID)
}

// ActingUserIDFromContext extracts the effective acting user ID.
func ActingUserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyActingUserID).(string)
	return v
}

// WithTenantID stores the active tenant ID in the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKeyTenantID, tenantID)
}

// TenantIDFromContext extracts the active tenant ID from the context.
func TenantIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTenantID).(string)
	return v
}

// WithSnapshot stores the full session snapshot in the context.
func WithSnapshot(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, ctxKeySnapshot, snap)
}

// SnapshotFromContext extracts the session snapshot from the context.
// The second return is false if no snapshot was stored.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	v, ok := ctx.Value(ctxKeySnapshot).(Snapshot)
	return v, ok
}

// WithImpersonation stores the impersonation overlay in the context.
func WithImpersonation(ctx context.Context, st ImpersonationState) context.Context {
	return context.WithValue(ctx, ctxKeyImpersonation, st)
}

// ImpersonationFromContext extracts the impersonation overlay, or the
// canonical empty overlay if none was stored.
func ImpersonationFromContext(ctx context.Context) ImpersonationState {
	v, ok := ctx.Value(ctxKeyImpersonation).(ImpersonationState)
	if !ok {
		return EmptyImpersonation()
	}
	return v
}
