package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentity_InjectsHeadersIntoContext(t *testing.T) {
	var gotUser, gotRole string
	handler := Identity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Role", "admin")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != "user-1" {
		t.Errorf("user id = %q, want %q", gotUser, "user-1")
	}
	if gotRole != "admin" {
		t.Errorf("role = %q, want %q", gotRole, "admin")
	}
}

func TestIdentity_AnonymousPassesThrough(t *testing.T) {
	called := false
	handler := Identity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if UserIDFromContext(r.Context()) != "" {
			t.Error("expected empty user id for anonymous request")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("handler not called")
	}
}

func TestRequireRole_Allowed(t *testing.T) {
	handler := Identity()(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPatch, "/orders/1/status", nil)
	req.Header.Set("X-User-Role", "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	handler := Identity()(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})))

	req := httptest.NewRequest(http.MethodPatch, "/orders/1/status", nil)
	req.Header.Set("X-User-Role", "customer")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
