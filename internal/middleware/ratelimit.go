package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// IPRateLimiter limits requests per client IP using a token bucket per IP.
type IPRateLimiter struct {
	ips   map[string]*rate.Limiter
	mu    sync.RWMutex
	limit rate.Limit
	burst int
}

// NewIPRateLimiter creates a per-IP rate limiter. limit is events per second; burst is max tokens per bucket.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.ips[ip]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Double-check after acquiring write lock
	if lim, ok = l.ips[ip]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.limit, l.burst)
	l.ips[ip] = lim
	return lim
}

// clientIP returns the client IP from X-Forwarded-For, X-Real-IP, or RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First value is the client when behind a single proxy
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware answers 429 with a Retry-After hint when the client IP exceeds the rate.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.getLimiter(clientIP(r))
		if !lim.Allow() {
			retry := 1
			if l.limit > 0 {
				retry = int(math.Ceil(1 / float64(l.limit)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ScanRateLimiter limits scan submissions per scanner station. Non-positive arguments take
// the defaults of 5 per second with a burst of 10.
func ScanRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return NewIPRateLimiter(rate.Limit(perSecond), burst)
}
