package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Stale buckets are swept inline during allow, so the limiter needs no
// background goroutine.
const (
	limiterSweepEvery = 5 * time.Minute
	limiterStaleAfter = 10 * time.Minute
)

// ipLimiter hands each client IP its own token bucket. It exists to protect
// vendor quota from a single noisy client; it is not part of the answer
// contract.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type tokenBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter creates a limiter refilling perSecond tokens up to burst.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		buckets:   make(map[string]*tokenBucket),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow takes one token from ip's bucket, creating the bucket on first sight.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterSweepEvery {
		for ip, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterStaleAfter {
				delete(l.buckets, ip)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &tokenBucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.tokens.Allow()
}

// rateLimitMiddleware rejects clients that exhaust their bucket. The ask
// endpoint keeps its always-200 contract even when limited: callers get the
// error-shaped body with the fallback answer instead of a 429.
func rateLimitMiddleware(l *ipLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if l.allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("rate limit exceeded",
				"ip", ip,
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", "1")

			if r.Method == http.MethodPost && r.URL.Path == "/" {
				writeJSON(w, http.StatusOK, askResponse{Error: "rate limited", Answer: FallbackAnswer}, logger)
				return
			}
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
		})
	}
}

// clientIP picks the bucket key for a request.
//
// With trustProxy set, X-Real-IP wins, then the first X-Forwarded-For entry;
// both are validated with net.ParseIP so a forged header cannot smuggle an
// arbitrary string into the bucket map. Without it only RemoteAddr counts.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
