package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/ragq-go/internal/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// ask sends one POST /api/query from addr through h.
func ask(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsBurst(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(100, 5, logging.Discard())
	defer stop()
	h := rl.middleware(okHandler)

	for i := range 5 {
		if w := ask(h, "127.0.0.1:12345"); w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	t.Parallel()

	// One token per 1000s: the third request inside the test is over.
	rl, stop := newRateLimiter(0.001, 2, logging.Discard())
	defer stop()
	h := rl.middleware(okHandler)

	_ = ask(h, "10.0.0.1:9999")
	_ = ask(h, "10.0.0.1:9999")
	w := ask(h, "10.0.0.1:9999")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1000" {
		t.Errorf("Retry-After: got %q, want %q", got, "1000")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "rate limit exceeded" {
		t.Errorf("error: got %q", body.Error)
	}
}

func TestRateLimit_RetryAfterAtLeastOneSecond(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(50, 1, logging.Discard())
	defer stop()
	if rl.retryAfter != "1" {
		t.Errorf("retryAfter: got %q, want 1", rl.retryAfter)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 1, logging.Discard())
	defer stop()
	h := rl.middleware(okHandler)

	for range 5 {
		_ = ask(h, "192.168.1.1:1111")
	}
	if w := ask(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second IP: expected 200, got %d", w.Code)
	}
	// Same host, different source port: same bucket.
	if w := ask(h, "192.168.1.1:3333"); w.Code != http.StatusTooManyRequests {
		t.Errorf("first IP on a new port: expected 429, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		wantIP     string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"10.0.0.1:80", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"::1:8080", "::1"},
		{"noport", "noport"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.wantIP {
			t.Errorf("remoteAddr=%q: expected %q, got %q", tc.remoteAddr, tc.wantIP, got)
		}
	}
}

func TestRateLimit_EvictsIdleEntries(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, logging.Discard())
	defer stop()

	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")
	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-2 * limiterTTL)
	rl.mu.Unlock()

	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["10.0.0.1"]; ok {
		t.Error("idle entry should have been evicted")
	}
	if _, ok := rl.limiters["10.0.0.2"]; !ok {
		t.Error("recent entry should have been kept")
	}
}

func TestRateLimit_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	_, stop := newRateLimiter(1, 1, logging.Discard())
	stop()
	stop()
}
