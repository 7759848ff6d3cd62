package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimit allows Max requests per client within Window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window limiter keyed by client IP and a route name.
// Link previews hit a third-party metadata API and uploads hit the bucket, so
// both are limited per client.
type RateLimiter struct {
	limit  RateLimit
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter. A zero Max disables limiting.
func NewRateLimiter(limit RateLimit, logger *slog.Logger) *RateLimiter {
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{limit: limit, now: time.Now, logger: logger, buckets: make(map[string]*bucket)}
}

// SetClock replaces the time source. Tests only.
func (rl *RateLimiter) SetClock(fn func() time.Time) { rl.now = fn }

// Allow counts one request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit.Max <= 0 {
		return true
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.limit.Window)}
		return true
	}
	b.count++
	return b.count <= rl.limit.Max
}

// GC drops expired buckets.
func (rl *RateLimiter) GC() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, k)
		}
	}
}

// StartGC runs GC every interval until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}, interval time.Duration) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.GC()
			}
		}
	}()
}

// Middleware limits the wrapped route under name. Refused requests get a 429
// JSON body and Retry-After.
func (rl *RateLimiter) Middleware(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ExtractIP(r)
			if rl.Allow(ip + " " + name) {
				next.ServeHTTP(w, r)
				return
			}
			GetLogger(r.Context()).Warn("ratelimit: request blocked", "ip", ip, "route", name)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.limit.Window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
		})
	}
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
