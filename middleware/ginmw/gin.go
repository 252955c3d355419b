// Package ginmw provides Gin HTTP middleware for portal processes that
// embed the session engine.
//
// UI handlers read the snapshot and derived navigation facts from the
// request context and treat them as read-only; the one redirect that
// reconciles session state with the requested route belongs to the
// Redirects middleware (backed by the arbiter), never to a handler.
package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	session "github.com/plazaops/session-go"
	"github.com/plazaops/session-go/arbiter"
	"github.com/plazaops/session-go/derive"
)

// Context keys for storing session data in gin.Context.
const (
	KeySnapshot = "session_snapshot"
	KeyNavMode  = "session_nav_mode"
)

// Session returns Gin middleware that injects the current snapshot and
// derived nav mode into the request context.
func Session(source session.SnapshotSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := source.Snapshot()
		c.Set(KeySnapshot, snap)
		c.Set(KeyNavMode, derive.NavModeOf(snap))

		ctx := session.WithSnapshot(c.Request.Context(), snap)
		ctx = session.WithActingUserID(ctx, snap.ActingUserID())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Redirects returns Gin middleware that lets the arbiter reconcile the
// request path with the session state. When a decision fires the
// request is answered with a redirect and aborted; handlers never see
// it.
func Redirects(a *arbiter.Arbiter, source session.SnapshotSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d := a.Evaluate(c.Request.URL.Path, source.Snapshot()); d != nil {
			c.Redirect(http.StatusFound, d.Target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// PlatformLayout returns Gin middleware for the platform-admin route
// group, which is incompatible with an active impersonation overlay.
// It is the safety net for the window where Redirects has not run: it
// never renders platform content while impersonating, answering with a
// redirect (once per epoch) or a transient placeholder instead.
func PlatformLayout(g *arbiter.LayoutGuard, source session.SnapshotSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		placeholder, redirect := g.Check(source.Snapshot())
		if redirect != nil {
			c.Redirect(http.StatusFound, redirect.Target)
			c.Abort()
			return
		}
		if placeholder {
			c.Header("Content-Type", "text/html; charset=utf-8")
			c.String(http.StatusOK, "<!doctype html><title>Redirecting</title><p>Redirecting...</p>")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSnapshot returns the snapshot stored by the Session middleware.
func GetSnapshot(c *gin.Context) (session.Snapshot, bool) {
	v, ok := c.Get(KeySnapshot)
	if !ok {
		return session.EmptySnapshot(), false
	}
	snap, ok := v.(session.Snapshot)
	if !ok {
		return session.EmptySnapshot(), false
	}
	return snap, true
}

// GetNavMode returns the nav mode stored by the Session middleware.
func GetNavMode(c *gin.Context) session.NavMode {
	v, ok := c.Get(KeyNavMode)
	if !ok {
		return session.NavTenant
	}
	mode, ok := v.(session.NavMode)
	if !ok {
		return session.NavTenant
	}
	return mode
}
