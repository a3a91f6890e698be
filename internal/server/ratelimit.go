package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragq-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained POST /api/query rate per IP
	// (requests/second) when none is configured.
	defaultRateLimit = 10

	// defaultRateBurst is the per-IP burst when none is configured.
	defaultRateBurst = 20

	// limiterTTL is how long an idle IP keeps its token bucket.
	limiterTTL = 5 * time.Minute

	// evictInterval is how often idle buckets are swept.
	evictInterval = time.Minute
)

// bucket is one client's token bucket and when it last asked for a token.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands out one token bucket per client IP. Questions are
// expensive (an embedding call plus a generation), so the limit applies to
// POST /api/query only.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	rps      rate.Limit
	burst    int
	// retryAfter is the Retry-After value sent with 429 responses, the time
	// one token takes to refill rounded up to whole seconds.
	retryAfter string
	log        *slog.Logger
}

// newRateLimiter returns a limiter allowing rps sustained requests per IP
// with the given burst, and starts sweeping idle buckets. Call the returned
// stop function to end the sweep.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	retry := 1
	if rps > 0 {
		retry = max(1, int(math.Ceil(1/rps)))
	}
	rl := &rateLimiter{
		limiters:   make(map[string]*bucket),
		rps:        rate.Limit(rps),
		burst:      burst,
		retryAfter: strconv.Itoa(retry),
		log:        log,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.evict()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// getLimiter returns the bucket for ip, creating it on first use.
func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.limiters[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// evict drops buckets idle for longer than limiterTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-limiterTTL)
	before := len(rl.limiters)
	for ip, b := range rl.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
	if n := before - len(rl.limiters); n > 0 {
		rl.log.Debug("rate limiter: evicted idle buckets", slog.Int("evicted", n), slog.Int("remaining", len(rl.limiters)))
	}
}

// middleware rejects requests over the client's limit with 429, a
// Retry-After header and a JSON error body.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.getLimiter(ip).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		log := logging.FromContext(r.Context())
		log.Warn("rate limit exceeded",
			slog.String("ip", ip),
			slog.String("path", r.URL.Path),
		)
		w.Header().Set("Retry-After", rl.retryAfter)
		writeJSON(w, log, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is ignored;
// the server binds to localhost unless told otherwise.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
