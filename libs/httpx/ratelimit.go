package httpx

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// windowCounter counts hits for key in a fixed window and reports how long
// until the window resets.
type windowCounter interface {
	hit(ctx context.Context, key string) (count int64, reset time.Duration, err error)
}

// limitRequests rejects callers that exceed limit hits per window with 429.
// Counter errors pass the request through when failOpen is set and answer 503
// otherwise.
func limitRequests(c windowCounter, limit int, logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, reset, err := c.hit(r.Context(), clientKey(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter unavailable", "err", err, "fail_open", failOpen)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}
			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter is a per-process fixed window limiter keyed by client address.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow
	hits    int
}

type fixedWindow struct {
	count int64
	ends  time.Time
}

// sweepEvery bounds how often expired windows are dropped from the map.
const sweepEvery = 1024

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, now: time.Now, windows: map[string]*fixedWindow{}}
}

func (rl *RateLimiter) Middleware() Middleware {
	return limitRequests(rl, rl.limit, nil, true)
}

func (rl *RateLimiter) hit(_ context.Context, key string) (int64, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.hits++
	if rl.hits%sweepEvery == 0 {
		for k, fw := range rl.windows {
			if !now.Before(fw.ends) {
				delete(rl.windows, k)
			}
		}
	}

	fw := rl.windows[key]
	if fw == nil || !now.Before(fw.ends) {
		fw = &fixedWindow{ends: now.Add(rl.window)}
		rl.windows[key] = fw
	}
	fw.count++
	return fw.count, fw.ends.Sub(now), nil
}

// clientKey prefers the first X-Forwarded-For hop, then the peer address.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
