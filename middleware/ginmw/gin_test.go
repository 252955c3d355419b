package ginmw

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	session "github.com/plazaops/session-go"
	"github.com/plazaops/session-go/arbiter"
)

type staticSource struct {
	snap session.Snapshot
}

func (s *staticSource) Snapshot() session.Snapshot { return s.snap }

func adminSnapshot() session.Snapshot {
	return session.Snapshot{
		User:  &session.User{ID: "u-1", Email: "admin@example.com", IsPlatformAdmin: true},
		Ready: true,
	}
}

func impersonatingSnapshot(tenant *session.ImpersonatedTenant) session.Snapshot {
	snap := adminSnapshot()
	snap.Impersonation = session.ImpersonationState{
		Active:     true,
		TargetUser: &session.ImpersonatedUser{ID: "u-2", Email: "target@example.com"},
		Tenant:     tenant,
		Role:       "tenant_admin",
	}
	return snap
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r
}

func TestSession_InjectsSnapshotAndNavMode(t *testing.T) {
	src := &staticSource{snap: impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t-1", Name: "Acme"})}

	r := newRouter()
	r.Use(Session(src))
	r.GET("/app", func(c *gin.Context) {
		snap, ok := GetSnapshot(c)
		if !ok {
			t.Error("expected snapshot in gin context")
		}
		if !snap.Impersonation.Active {
			t.Error("expected impersonation to survive injection")
		}
		if mode := GetNavMode(c); mode != session.NavImpersonating {
			t.Errorf("expected nav mode %q, got %q", session.NavImpersonating, mode)
		}
		ctxSnap, ok := session.SnapshotFromContext(c.Request.Context())
		if !ok || ctxSnap.UserID() != "u-1" {
			t.Error("expected snapshot on the request context")
		}
		if actor := session.ActingUserIDFromContext(c.Request.Context()); actor != "u-2" {
			t.Errorf("expected acting user u-2, got %q", actor)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRedirects_SendsSelectionRedirect(t *testing.T) {
	src := &staticSource{snap: impersonatingSnapshot(nil)}
	routes := session.DefaultRoutes()
	a := arbiter.New(routes, arbiter.WithLogger(slog.New(slog.DiscardHandler)))

	r := newRouter()
	r.Use(Redirects(a, src))
	r.GET("/app/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/dashboard", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != routes.TenantSelect {
		t.Errorf("expected redirect to %q, got %q", routes.TenantSelect, loc)
	}

	// The latch holds: repeating the request passes through.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after latch, got %d", w.Code)
	}
}

func TestRedirects_PassThroughWhenInactive(t *testing.T) {
	src := &staticSource{snap: adminSnapshot()}
	a := arbiter.New(session.DefaultRoutes(), arbiter.WithLogger(slog.New(slog.DiscardHandler)))

	r := newRouter()
	r.Use(Redirects(a, src))
	r.GET("/app/platform/users", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/platform/users", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPlatformLayout_RedirectsThenPlaceholders(t *testing.T) {
	src := &staticSource{snap: impersonatingSnapshot(&session.ImpersonatedTenant{ID: "t-1", Name: "Acme"})}
	routes := session.DefaultRoutes()
	g := arbiter.NewLayoutGuard(routes, arbiter.WithLogger(slog.New(slog.DiscardHandler)))

	r := newRouter()
	r.Use(PlatformLayout(g, src))
	r.GET("/app/platform", func(c *gin.Context) { c.String(http.StatusOK, "platform") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/platform", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != routes.AppRoot {
		t.Errorf("expected redirect to %q, got %q", routes.AppRoot, loc)
	}

	// After the one-shot redirect the guard still refuses to render
	// platform content while the overlay is active.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/platform", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 placeholder, got %d", w.Code)
	}
	if body := w.Body.String(); body == "platform" {
		t.Error("expected placeholder body, got platform content")
	}
}

func TestPlatformLayout_PassThroughWhenNotImpersonating(t *testing.T) {
	src := &staticSource{snap: adminSnapshot()}
	g := arbiter.NewLayoutGuard(session.DefaultRoutes(), arbiter.WithLogger(slog.New(slog.DiscardHandler)))

	r := newRouter()
	r.Use(PlatformLayout(g, src))
	r.GET("/app/platform", func(c *gin.Context) { c.String(http.StatusOK, "platform") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/platform", nil))
	if w.Code != http.StatusOK || w.Body.String() != "platform" {
		t.Fatalf("expected platform content, got %d %q", w.Code, w.Body.String())
	}
}
