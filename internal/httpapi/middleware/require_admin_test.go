package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireAdmin_AllowsAdminKey_BlocksPublicKey(t *testing.T) {
	keys := Keys{
		Public: []string{"pub_key"},
		Admin:  []string{"adm_key"},
	}

	var seen Role
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RoleFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// Admin key -> 200
	reqAdm := httptest.NewRequest(http.MethodGet, "/admin", nil)
	reqAdm.Header.Set("X-API-Key", "adm_key")
	recAdm := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recAdm, reqAdm)
	if recAdm.Code != http.StatusOK || seen != RoleAdmin {
		t.Fatalf("admin key should pass; got %d role=%s", recAdm.Code, seen)
	}

	// Bearer form -> 200
	reqBearer := httptest.NewRequest(http.MethodGet, "/admin", nil)
	reqBearer.Header.Set("Authorization", "Bearer adm_key")
	recBearer := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recBearer, reqBearer)
	if recBearer.Code != http.StatusOK {
		t.Fatalf("bearer admin key should pass; got %d", recBearer.Code)
	}

	// Public key -> 403
	reqPub := httptest.NewRequest(http.MethodGet, "/admin", nil)
	reqPub.Header.Set("X-API-Key", "pub_key")
	recPub := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recPub, reqPub)
	if recPub.Code != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", recPub.Code)
	}

	// Missing key -> 401
	reqNone := httptest.NewRequest(http.MethodGet, "/admin", nil)
	recNone := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recNone, reqNone)
	if recNone.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401; got %d", recNone.Code)
	}
}

func TestRequireAny(t *testing.T) {
	keys := Keys{Public: []string{"pub_key"}, Admin: []string{"adm_key"}}
	var seen Role
	h := RequireAny(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RoleFrom(r.Context())
	}))

	for key, want := range map[string]Role{"pub_key": RolePublic, "adm_key": RoleAdmin} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || seen != want {
			t.Fatalf("%s: code=%d role=%s", key, rec.Code, seen)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key: want 401 got %d", rec.Code)
	}
}

func TestRequireAny_NoKeysConfigured(t *testing.T) {
	h := RequireAny(Keys{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open mode should pass; got %d", rec.Code)
	}
}
