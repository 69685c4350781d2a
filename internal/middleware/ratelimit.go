// Package middleware provides HTTP middleware for the External Interface
// Shim: rate limiting and CORS, adapted from libs/middleware.
package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"paperbroker/internal/observability"
)

// RateLimitConfig configures the shim's request throttling.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	Enabled           bool
}

// DefaultRateLimitConfig returns conservative development defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 100, RequestsPerHour: 1000, Enabled: true}
}

// RateLimitConfigFromEnv reads PAPERBROKER_RATE_LIMIT_* overrides.
func RateLimitConfigFromEnv() RateLimitConfig {
	config := DefaultRateLimitConfig()
	if rpm := os.Getenv("PAPERBROKER_RATE_LIMIT_PER_MINUTE"); rpm != "" {
		if v, err := strconv.Atoi(rpm); err == nil && v > 0 {
			config.RequestsPerMinute = v
		}
	}
	if rph := os.Getenv("PAPERBROKER_RATE_LIMIT_PER_HOUR"); rph != "" {
		if v, err := strconv.Atoi(rph); err == nil && v > 0 {
			config.RequestsPerHour = v
		}
	}
	if enabled := os.Getenv("PAPERBROKER_RATE_LIMIT_ENABLED"); enabled != "" {
		config.Enabled = enabled != "false" && enabled != "0"
	}
	return config
}

type clientBucket struct {
	mu              sync.Mutex
	minuteCount     int
	hourCount       int
	minuteResetTime time.Time
	hourResetTime   time.Time
}

// RateLimiter is an in-memory, per-client-IP request throttle.
type RateLimiter struct {
	config  RateLimitConfig
	logger  *observability.Logger
	mu      sync.RWMutex
	clients map[string]*clientBucket
}

// NewRateLimiter starts a RateLimiter and its background cleanup loop.
func NewRateLimiter(config RateLimitConfig, logger *observability.Logger) *RateLimiter {
	rl := &RateLimiter{config: config, logger: logger, clients: make(map[string]*clientBucket)}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request from clientIP may proceed, and if not, a
// human-readable reason.
func (rl *RateLimiter) Allow(clientIP string) (bool, string) {
	if !rl.config.Enabled {
		return true, ""
	}

	now := time.Now()

	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()

	if !exists {
		bucket = &clientBucket{minuteResetTime: now.Add(time.Minute), hourResetTime: now.Add(time.Hour)}
		rl.mu.Lock()
		rl.clients[clientIP] = bucket
		rl.mu.Unlock()
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if now.After(bucket.minuteResetTime) {
		bucket.minuteCount = 0
		bucket.minuteResetTime = now.Add(time.Minute)
	}
	if now.After(bucket.hourResetTime) {
		bucket.hourCount = 0
		bucket.hourResetTime = now.Add(time.Hour)
	}

	if bucket.minuteCount >= rl.config.RequestsPerMinute {
		retryAfter := bucket.minuteResetTime.Sub(now)
		return false, fmt.Sprintf("rate limit exceeded: %d requests per minute, retry after %v",
			rl.config.RequestsPerMinute, retryAfter.Round(time.Second))
	}
	if bucket.hourCount >= rl.config.RequestsPerHour {
		retryAfter := bucket.hourResetTime.Sub(now)
		return false, fmt.Sprintf("rate limit exceeded: %d requests per hour, retry after %v",
			rl.config.RequestsPerHour, retryAfter.Round(time.Second))
	}

	bucket.minuteCount++
	bucket.hourCount++
	return true, ""
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for ip, bucket := range rl.clients {
			bucket.mu.Lock()
			if now.After(bucket.minuteResetTime) && now.After(bucket.hourResetTime) &&
				bucket.minuteCount == 0 && bucket.hourCount == 0 {
				delete(rl.clients, ip)
			}
			bucket.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// Middleware enforces the rate limit on every request.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		allowed, message := rl.Allow(clientIP)
		if !allowed {
			rl.logger.LogInfo(r.Context(), "rate_limited", map[string]any{"client_ip": clientIP, "path": r.URL.Path})
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", "0")
			http.Error(w, message, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if idx := strings.LastIndexByte(r.RemoteAddr, ':'); idx >= 0 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

// Stats reports the limiter's current configuration and client count.
func (rl *RateLimiter) Stats() map[string]any {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return map[string]any{
		"enabled":             rl.config.Enabled,
		"requests_per_minute": rl.config.RequestsPerMinute,
		"requests_per_hour":   rl.config.RequestsPerHour,
		"active_clients":      len(rl.clients),
	}
}
