package postgres

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueryObserver_SetAndGet(t *testing.T) {
	// Not parallel: mutates the package-level observer.
	defer SetQueryObserver(nil)

	var mu sync.Mutex
	var calls int
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if method != "POST" || route != "/api/v1/complaints" || outcome != "ok" {
			t.Errorf("observed (%s, %s, %s)", method, route, outcome)
		}
	}))

	obs := getQueryObserver()
	if obs == nil {
		t.Fatal("observer not set")
	}
	obs.ObserveQuery(context.Background(), "POST", "/api/v1/complaints", "ok", time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestQueryObserver_NilClears(t *testing.T) {
	SetQueryObserver(QueryObserverFunc(func(context.Context, string, string, string, time.Duration) {}))
	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Fatal("observer not cleared")
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "GET")
	if got := httpMethodFromContext(ctx); got != "GET" {
		t.Errorf("method = %q, want GET", got)
	}
	if got := httpMethodFromContext(context.Background()); got != "UNKNOWN" {
		t.Errorf("method without context value = %q, want UNKNOWN", got)
	}
	if ctx := WithHTTPMethod(context.Background(), ""); httpMethodFromContext(ctx) != "UNKNOWN" {
		t.Error("empty method should not be stored")
	}
}

func TestRoutePatternFromContext_Default(t *testing.T) {
	t.Parallel()

	if got := routePatternFromContext(context.Background()); got != "unknown" {
		t.Errorf("route = %q, want unknown", got)
	}
}
