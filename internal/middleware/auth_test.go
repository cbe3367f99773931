package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuth(t *testing.T) {
	keys := map[string]string{"user-1": "k1", "bad/id": "k2"}

	var gotIdentity string
	h := APIKeyAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = GetIdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		path     string
		header   string
		status   int
		identity string
	}{
		{name: "bearer", path: "/v1/scans", header: "Bearer k1", status: http.StatusOK, identity: "user-1"},
		{name: "raw key", path: "/v1/scans", header: "k1", status: http.StatusOK, identity: "user-1"},
		{name: "missing", path: "/v1/scans", status: http.StatusUnauthorized},
		{name: "wrong key", path: "/v1/scans", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "empty bearer", path: "/v1/scans", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "invalid identity", path: "/v1/scans", header: "Bearer k2", status: http.StatusForbidden},
		{name: "public", path: "/health", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotIdentity = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if gotIdentity != tt.identity {
				t.Errorf("identity = %q, want %q", gotIdentity, tt.identity)
			}
		})
	}
}

func TestRateLimiter_PerIdentity(t *testing.T) {
	rl := NewRateLimiter(2, 0)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(identity, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if identity != "" {
			req = req.WithContext(WithIdentity(req.Context(), identity))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := range 2 {
		if rec := send("alice", "/v1/scans"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := send("alice", "/v1/scans")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if rec := send("bob", "/v1/scans"); rec.Code != http.StatusOK {
		t.Errorf("bob should get a separate bucket, got %d", rec.Code)
	}
	if rec := send("alice", "/health"); rec.Code != http.StatusOK {
		t.Errorf("public path limited: %d", rec.Code)
	}
}

func TestRateLimiter_FallsBackToIP(t *testing.T) {
	rl := NewRateLimiter(1, 0)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/scans", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if c := send("10.0.0.1:1234"); c != http.StatusOK {
		t.Fatalf("first = %d", c)
	}
	if c := send("10.0.0.1:5555"); c != http.StatusTooManyRequests {
		t.Errorf("same ip = %d, want 429", c)
	}
	if c := send("10.0.0.2:1234"); c != http.StatusOK {
		t.Errorf("other ip = %d", c)
	}
}
