package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	session "github.com/plazaops/session-go"
)

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ContextPath {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestFetchContext_CanonicalShape(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{
		"ok": true,
		"user": {"id": "u1", "email": "a@b.test", "full_name": "Ada", "is_platform_admin": true},
		"memberships": [
			{"tenant_id": "t1", "tenant_name": "Oakville", "tenant_slug": "oakville", "tenant_type": "community", "role": "owner", "is_primary": true}
		],
		"impersonation": {
			"active": true,
			"target_user": {"id": "u9", "email": "t@b.test", "display_name": "Tess"},
			"tenant_id": "t9", "tenant_name": "Birch", "tenant_slug": "birch",
			"role": "tenant_admin",
			"expires_at": "2026-09-01T10:00:00Z"
		}
	}`)
	defer srv.Close()

	payload, err := New(srv.URL).FetchContext(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchContext returned error: %v", err)
	}

	if payload.User.ID != "u1" || !payload.User.IsPlatformAdmin {
		t.Errorf("unexpected user: %+v", payload.User)
	}
	if len(payload.Memberships) != 1 || payload.Memberships[0].TenantType != session.TenantCommunity {
		t.Errorf("unexpected memberships: %+v", payload.Memberships)
	}

	imp := payload.Impersonation
	if !imp.Active {
		t.Fatal("expected active impersonation")
	}
	if imp.TargetUser == nil || imp.TargetUser.ID != "u9" {
		t.Errorf("unexpected target user: %+v", imp.TargetUser)
	}
	if imp.Tenant == nil || imp.Tenant.Slug != "birch" {
		t.Errorf("unexpected tenant: %+v", imp.Tenant)
	}
	if imp.ExpiresAt == nil {
		t.Error("expected expires_at to be parsed")
	}
}

func TestFetchContext_LegacyShape(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{
		"ok": true,
		"user": {"id": "u1", "email": "a@b.test", "full_name": "Ada"},
		"memberships": [],
		"is_impersonating": true,
		"impersonated_tenant": {"tenant_id": "t3", "tenant_name": "Cedar", "tenant_slug": "cedar"}
	}`)
	defer srv.Close()

	payload, err := New(srv.URL).FetchContext(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchContext returned error: %v", err)
	}

	imp := payload.Impersonation
	if !imp.Active {
		t.Fatal("expected active impersonation from legacy fields")
	}
	if imp.Tenant == nil || imp.Tenant.ID != "t3" {
		t.Errorf("unexpected tenant: %+v", imp.Tenant)
	}
	if imp.TargetUser != nil || imp.ExpiresAt != nil {
		t.Errorf("legacy synthesis must leave target user and expiry unset: %+v", imp)
	}
}

func TestFetchContext_CanonicalWinsOverLegacy(t *testing.T) {
	// When both shapes are present the canonical object is authoritative;
	// an inactive canonical overlay must not fall back to legacy fields.
	srv := serveJSON(t, http.StatusOK, `{
		"ok": true,
		"user": {"id": "u1"},
		"memberships": [],
		"impersonation": {"active": false, "tenant_id": "junk"},
		"is_impersonating": true,
		"impersonated_tenant": {"tenant_id": "t3"}
	}`)
	defer srv.Close()

	payload, err := New(srv.URL).FetchContext(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchContext returned error: %v", err)
	}
	if payload.Impersonation != session.EmptyImpersonation() {
		t.Errorf("expected empty impersonation, got %+v", payload.Impersonation)
	}
}

func TestFetchContext_InactiveDefaultsToEmptyConstant(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"ok": true, "user": {"id": "u1"}, "memberships": []}`)
	defer srv.Close()

	f := New(srv.URL)
	first, err := f.FetchContext(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchContext returned error: %v", err)
	}
	second, err := f.FetchContext(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchContext returned error: %v", err)
	}
	if first.Impersonation != second.Impersonation || first.Impersonation != session.EmptyImpersonation() {
		t.Errorf("empty overlay must be structurally identical every time: %+v vs %+v",
			first.Impersonation, second.Impersonation)
	}
}

func TestFetchContext_Unauthorized(t *testing.T) {
	srv := serveJSON(t, http.StatusUnauthorized, `{"ok": false}`)
	defer srv.Close()

	_, err := New(srv.URL).FetchContext(context.Background(), "tok")
	if !session.IsUnauthorized(err) {
		t.Errorf("expected unauthorized fetch error, got %v", err)
	}
}

func TestFetchContext_WrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchContext(context.Background(), "tok")
	var fe *session.FetchError
	if !errors.As(err, &fe) || fe.Kind != session.FetchMalformed {
		t.Errorf("expected malformed fetch error, got %v", err)
	}
}

func TestFetchContext_OriginNotOK(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"ok": false, "user": {"id": "u1"}}`)
	defer srv.Close()

	_, err := New(srv.URL).FetchContext(context.Background(), "tok")
	var fe *session.FetchError
	if !errors.As(err, &fe) || fe.Kind != session.FetchMalformed {
		t.Errorf("expected malformed fetch error for ok=false, got %v", err)
	}
}

func TestFetchContext_ServerError(t *testing.T) {
	srv := serveJSON(t, http.StatusInternalServerError, `{}`)
	defer srv.Close()

	_, err := New(srv.URL).FetchContext(context.Background(), "tok")
	var fe *session.FetchError
	if !errors.As(err, &fe) || fe.Kind != session.FetchNetwork {
		t.Errorf("expected transient network error for 500, got %v", err)
	}
	if !session.IsTransientFetch(err) {
		t.Error("500 must classify as transient")
	}
}

func TestFetchContext_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := New(srv.URL).FetchContext(context.Background(), "tok")
	var fe *session.FetchError
	if !errors.As(err, &fe) || fe.Kind != session.FetchNetwork {
		t.Errorf("expected network fetch error, got %v", err)
	}
}

func TestFetchContext_EmptyToken(t *testing.T) {
	_, err := New("http://unused.test").FetchContext(context.Background(), "")
	if !session.IsUnauthorized(err) {
		t.Errorf("expected unauthorized for empty token, got %v", err)
	}
}

