package vasttrafik

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, calls *int32, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if user, _, ok := r.BasicAuth(); !ok || user != "client-id" {
			t.Errorf("missing or wrong basic auth, got user %q", user)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("expected client_credentials grant, got %q", r.PostForm.Get("grant_type"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","expires_in":` + strconv.Itoa(expiresIn) + `}`))
	}))
}

func TestToken_ReuseWithinValidity(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, 3600)
	defer srv.Close()

	tc := NewTokenClient(srv.URL, "client-id", "client-secret")

	tok1, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("first Token: %v", err)
	}
	tok2, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("second Token: %v", err)
	}

	if tok1 != "tok-abc" || tok2 != "tok-abc" {
		t.Errorf("unexpected tokens: %q, %q", tok1, tok2)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", n)
	}
}

func TestToken_RefreshesNearExpiry(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, 90)
	defer srv.Close()

	tc := NewTokenClient(srv.URL, "client-id", "client-secret")

	now := time.Now()
	tc.now = func() time.Time { return now }

	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}

	// 90s validity with a 60s margin: 40s later the token is stale.
	now = now.Add(40 * time.Second)
	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("Token after margin: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 refresh calls, got %d", n)
	}
}

func TestToken_ReturnsStaleOnRefreshFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-old","expires_in":3600}`))
	}))
	defer srv.Close()

	tc := NewTokenClient(srv.URL, "client-id", "client-secret")
	now := time.Now()
	tc.now = func() time.Time { return now }

	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("initial Token: %v", err)
	}

	// Force staleness, then make the endpoint fail.
	now = now.Add(2 * time.Hour)
	fail.Store(true)

	tok, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("expected degraded success, got error: %v", err)
	}
	if tok != "tok-old" {
		t.Errorf("expected previous token as last resort, got %q", tok)
	}
}

func TestToken_ErrorWhenNeverObtained(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tc := NewTokenClient(srv.URL, "client-id", "client-secret")
	if _, err := tc.Token(context.Background()); err == nil {
		t.Fatal("expected error when no token has ever been obtained")
	}
}

func TestToken_ConcurrentCallersSingleRefresh(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls, 3600)
	defer srv.Close()

	tc := NewTokenClient(srv.URL, "client-id", "client-secret")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tc.Token(context.Background()); err != nil {
				t.Errorf("Token: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single refresh despite %d racing callers, got %d", 16, n)
	}
}
