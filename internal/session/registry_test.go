package session

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/johnboard/internal/cache"
	"github.com/dropDatabas3/johnboard/internal/identity/local"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Deps{
		Provider:    local.New(local.Config{JWTSecret: "test"}),
		Store:       cache.NewMemory("test", time.Minute),
		SignInURL:   "/signin",
		CallbackURL: "/auth/callback",
	})
	t.Cleanup(r.Close)
	return r
}

func TestGetReturnsSameOrchestratorPerSession(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	a := r.Get(ctx, "sid-1", "")
	b := r.Get(ctx, "sid-1", "")
	if a != b {
		t.Fatal("same sid must map to the same orchestrator")
	}
	if c := r.Get(ctx, "sid-2", ""); c == a {
		t.Fatal("different sids must not share an orchestrator")
	}
}

func TestConcurrentGetCreatesOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	results := make([]interface{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Get(ctx, "sid-x", "")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent gets must resolve to one orchestrator")
		}
	}
}

func TestEnsureCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	sid := EnsureCookie(w, req)
	if sid == "" {
		t.Fatal("expected a fresh sid")
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatal("expected Set-Cookie on first visit")
	}

	// Con cookie válida presente no se reemite.
	req2 := httptest.NewRequest("GET", "/", nil)
	req2.AddCookie(w.Result().Cookies()[0])
	w2 := httptest.NewRecorder()
	if got := EnsureCookie(w2, req2); got != sid {
		t.Fatalf("expected sid %q back, got %q", sid, got)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Fatal("must not re-issue an existing cookie")
	}
}
