package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/scenario", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:5000", ""))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5001", ""))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5002", ""), "same host shares a limiter across ports")

	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000", ""), "other clients are unaffected")
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/scenario", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("198.51.100.2"), "rotating the header must not reset the limit")
}

func TestClientKey(t *testing.T) {
	rl := NewRateLimiter(1, 1, "10.0.0.254", "10.0.0.253")

	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{name: "direct client", remote: "198.51.100.7:1234", want: "198.51.100.7"},
		{name: "untrusted peer with header", remote: "198.51.100.7:1234", forwarded: "1.2.3.4", want: "198.51.100.7"},
		{name: "trusted proxy", remote: "10.0.0.254:80", forwarded: "192.168.1.7", want: "192.168.1.7"},
		{name: "spoofed left entries are skipped", remote: "10.0.0.254:80", forwarded: "1.2.3.4, 192.168.1.7", want: "192.168.1.7"},
		{name: "proxy chain", remote: "10.0.0.254:80", forwarded: "192.168.1.7, 10.0.0.253", want: "192.168.1.7"},
		{name: "trusted proxy without header", remote: "10.0.0.254:80", want: "10.0.0.254"},
		{name: "remote without port", remote: "198.51.100.7", want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, rl.clientKey(req))
		})
	}
}

func TestRateLimitResponseBody(t *testing.T) {
	s := newTestServer(t, &ServerConfig{Host: "localhost", Port: "0", RequestsPerSecond: 1, Burst: 1})

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, second))
}

func TestNewRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	limiter := rl.getLimiter("client")
	assert.Equal(t, 20.0, float64(limiter.Limit()))
	assert.Equal(t, 40, limiter.Burst())
	assert.Same(t, limiter, rl.getLimiter("client"))
}
