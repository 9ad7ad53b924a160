package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func authProtected(t *testing.T) http.Handler {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return BasicAuthMiddleware("admin", "secret", zap.NewNop())(inner)
}

func TestBasicAuthAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/templates/email/", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()

	authProtected(t).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid credentials rejected: %d", rec.Code)
	}
}

func TestBasicAuthRejects(t *testing.T) {
	cases := []struct {
		name       string
		user, pass string
		noHeader   bool
	}{
		{name: "missing header", noHeader: true},
		{name: "wrong user", user: "root", pass: "secret"},
		{name: "wrong pass", user: "admin", pass: "guess"},
		{name: "both wrong", user: "root", pass: "guess"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/templates/email/", nil)
			if !tc.noHeader {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			rec := httptest.NewRecorder()

			authProtected(t).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if got := rec.Header().Get("WWW-Authenticate"); got == "" {
				t.Fatal("WWW-Authenticate header missing")
			}
		})
	}
}
