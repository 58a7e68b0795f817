package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"redas-backend/internal/ctxkeys"
)

// keyedLimiter stores one token bucket per client key with periodic cleanup.
type keyedLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(r rate.Limit, burst int) *keyedLimiter {
	kl := &keyedLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
	}
	go kl.cleanup()
	return kl
}

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	entry, exists := kl.limiters[key]
	if !exists {
		limiter := rate.NewLimiter(kl.rate, kl.burst)
		kl.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanup removes entries not seen in the last 10 minutes.
func (kl *keyedLimiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		kl.mu.Lock()
		for key, entry := range kl.limiters {
			if time.Since(entry.lastSeen) > 10*time.Minute {
				delete(kl.limiters, key)
			}
		}
		kl.mu.Unlock()
	}
}

// RateLimit returns middleware that limits requests per client.
// Authenticated requests are keyed by user, anonymous ones by IP.
// r is the refill rate, burst the bucket size.
func RateLimit(r rate.Limit, burst int) func(http.Handler) http.Handler {
	kl := newKeyedLimiter(r, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !kl.get(clientKey(req)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// PerMinute limits each client to n requests per minute, allowing a burst of n.
// n <= 0 disables the limit.
func PerMinute(n int) func(http.Handler) http.Handler {
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimit(rate.Every(time.Minute/time.Duration(n)), n)
}

func clientKey(r *http.Request) string {
	if actor, ok := ctxkeys.Actor(r.Context()); ok {
		return "user:" + strconv.FormatInt(actor.ID, 10)
	}
	return "ip:" + extractIP(r)
}

// extractIP gets the client IP, respecting X-Forwarded-For from reverse proxies.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
