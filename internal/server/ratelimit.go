package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/evidentia/policyrag/internal/logging"
)

const (
	// defaultRateLimit is the per-IP sustained request rate (requests/second)
	// used when the config leaves RateLimit zero.
	defaultRateLimit = 10
	// defaultRateBurst is the per-IP burst size used when the config leaves
	// RateBurst zero.
	defaultRateBurst = 20

	// visitorIdleTTL is how long an IP may go unseen before its bucket is
	// discarded.
	visitorIdleTTL = 5 * time.Minute
	// evictInterval is how often idle buckets are swept.
	evictInterval = time.Minute
)

// visitor pairs a token bucket with the time of its owner's last request.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles requests per client IP with a token bucket each.
// Buckets for idle IPs are swept periodically so the map stays bounded.
type rateLimiter struct {
	rps   rate.Limit
	burst int
	log   *slog.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

// newRateLimiter returns a limiter and a stop function that halts the
// background sweep. Callers must invoke stop on shutdown.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
		visitors: make(map[string]*visitor),
	}

	done := make(chan struct{})
	go func() {
		tick := time.NewTicker(evictInterval)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.sweep(time.Now())
			}
		}
	}()

	return rl, func() { close(done) }
}

// allow records a request from ip and reports whether it is within the limit.
// A first request from an unknown IP always opens a fresh bucket.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.bucket.Allow()
}

// sweep drops visitors idle longer than visitorIdleTTL as of now.
func (rl *rateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(rl.visitors, ip)
		}
	}
}

// middleware rejects over-limit requests with 429 and a Retry-After hint
// derived from the configured rate.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.rps > 0 && rl.rps < 1 {
		retryAfter = strconv.Itoa(int(1 / float64(rl.rps)))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns RemoteAddr without its port. X-Forwarded-For is ignored;
// nothing is assumed to front this server.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
