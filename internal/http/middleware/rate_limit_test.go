package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/medsched/confirmlink/internal/http/middleware"
)

func newLimitedHandler(t *testing.T, requests int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := middleware.NewRateLimiter(client, middleware.RateLimitConfig{
		Requests: requests,
		Window:   time.Minute,
		KeyFunc:  middleware.ClientIPKeyFunc,
	})

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return handler, mr
}

func doRequest(handler http.Handler, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/c/transfit/abc123", nil)
	req.RemoteAddr = ip + ":54321"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	handler, _ := newLimitedHandler(t, 3)

	for i := 0; i < 3; i++ {
		if code := doRequest(handler, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	handler, _ := newLimitedHandler(t, 2)

	doRequest(handler, "10.0.0.1")
	doRequest(handler, "10.0.0.1")

	if code := doRequest(handler, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", code)
	}

	// A different client is unaffected.
	if code := doRequest(handler, "10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other client: status = %d, want 200", code)
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	handler, mr := newLimitedHandler(t, 1)

	doRequest(handler, "10.0.0.1")
	if code := doRequest(handler, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", code)
	}

	mr.FastForward(2 * time.Minute)

	if code := doRequest(handler, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("after window: status = %d, want 200", code)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	handler, mr := newLimitedHandler(t, 1)
	mr.Close()

	for i := 0; i < 5; i++ {
		if code := doRequest(handler, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d with redis down: status = %d, want 200", i+1, code)
		}
	}
}

func TestRateLimiterUsesForwardedFor(t *testing.T) {
	handler, _ := newLimitedHandler(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/c/transfit/abc123", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	req2 := httptest.NewRequest(http.MethodGet, "/c/transfit/abc123", nil)
	req2.RemoteAddr = "127.0.0.2:1234"
	req2.Header.Set("X-Forwarded-For", "203.0.113.5")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	// Both requests share the forwarded client address.
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w2.Code)
	}
}

func TestRateLimiterSkipFunc(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := middleware.NewRateLimiter(client, middleware.RateLimitConfig{
		Requests: 1,
		Window:   time.Minute,
		KeyFunc:  middleware.ClientIPKeyFunc,
		SkipFunc: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("healthz request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}
