package httpmiddleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig bounds the request rate per client IP.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max int
	// Window is the counting interval.
	Window time.Duration
}

// tally is one client's counter for the current interval.
type tally struct {
	count int
	start time.Time
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*tally
}

// take consumes one slot for key, starting a fresh interval when the
// previous one has elapsed.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.clients[key]
	if t == nil || now.Sub(t.start) >= l.cfg.Window {
		t = &tally{start: now}
		l.clients[key] = t
	}

	resetAt = t.start.Add(l.cfg.Window)
	if t.count >= l.cfg.Max {
		return 0, resetAt, false
	}
	t.count++
	return l.cfg.Max - t.count, resetAt, true
}

// sweep drops counters whose interval has elapsed, so idle clients do
// not accumulate forever.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, t := range l.clients {
		if now.Sub(t.start) >= l.cfg.Window {
			delete(l.clients, key)
		}
	}
}

// RateLimitWithCleanup enforces a fixed-window request budget per client
// IP and evicts idle counters in the background until ctx is cancelled.
// Every response carries X-RateLimit-Limit, X-RateLimit-Remaining, and
// X-RateLimit-Reset; a rejected request gets 429 with the API's error
// envelope and a Retry-After hint.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := &limiter{cfg: cfg, clients: make(map[string]*tally)}

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, ok := l.take(clientIP(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"kind":    "rate_limited",
						"message": "rate limit exceeded",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers proxy headers over the socket address, taking the
// first hop from X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
