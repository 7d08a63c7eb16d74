package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/scenario-simulator/internal/errors"
	"golang.org/x/time/rate"
)

// RateLimiter manages per-client rate limiting for API requests
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit     rate.Limit
	burstSize int
	trusted   map[string]struct{}
}

// NewRateLimiter creates a new rate limiter. Non-positive values fall back to 20 rps with a burst of 40.
// X-Forwarded-For is only read on requests arriving from one of trustedProxies.
func NewRateLimiter(rps, burst int, trustedProxies ...string) *RateLimiter {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 2 * rps
	}
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, proxy := range trustedProxies {
		trusted[proxy] = struct{}{}
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(rps),
		burstSize: burst,
		trusted:   trusted,
	}
}

// getLimiter returns the rate limiter for a client
func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[client]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[client]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters[client] = limiter

	return limiter
}

// clientKey identifies the caller by its remote host. Behind a trusted proxy the
// forwarded chain is walked from the right to the first hop that is not a trusted proxy.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if _, ok := rl.trusted[host]; !ok {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, ok := rl.trusted[hop]; !ok {
			return hop
		}
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(rl.clientKey(r))

			if !limiter.Allow() {
				respondServiceError(w, r, errors.NewRateLimitError(float64(limiter.Limit()), limiter.Burst()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
