// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/fcrouter/internal/telemetry"
)

// ============================================================================
// Auth Middleware
// ============================================================================

// AuthMiddleware requires "Authorization: Bearer <token>" on every route
// except /health. An empty token disables authentication.
func AuthMiddleware(token string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		reason := ""
		switch {
		case header == "":
			reason = "missing_auth_header"
		case !strings.HasPrefix(header, "Bearer "):
			reason = "invalid_auth_format"
		case !ValidateBearerToken(strings.TrimPrefix(header, "Bearer "), token):
			reason = "invalid_token"
		}
		if reason != "" {
			logger.Warn("AUTH_DENIED", zap.String("ip", c.ClientIP()), zap.String("reason", reason))
			abortError(c, http.StatusUnauthorized, "authentication_error", "Unauthorized")
			return
		}
		c.Next()
	}
}

// ValidateBearerToken compares tokens in constant time. Returns false if
// either token is empty.
func ValidateBearerToken(token, expected string) bool {
	if token == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// ============================================================================
// Rate Limiting
// ============================================================================

// limiterEntry wraps a limiter with its last access time.
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu              sync.Mutex
	limiters        map[string]*limiterEntry
	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with the given burst. rps <= 0 allows everything.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters:        make(map[string]*limiterEntry),
		rps:             rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

// Allow reports whether the client may make a request now.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.rps <= 0 {
		return true
	}

	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastCleanup) > rl.cleanupInterval {
		for key, e := range rl.limiters {
			if now.Sub(e.lastAccess) > rl.cleanupInterval {
				delete(rl.limiters, key)
			}
		}
		rl.lastCleanup = now
	}
	e, ok := rl.limiters[client]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[client] = e
	}
	e.lastAccess = now
	rl.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429. /health is exempt.
func (rl *RateLimiter) Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		logger.Warn("RATE_LIMITED", zap.String("ip", c.ClientIP()), zap.String("path", c.Request.URL.Path))
		c.Header("Retry-After", "1")
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%.0f", float64(rl.rps)))
		abortError(c, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
	}
}

// ============================================================================
// Body Limit
// ============================================================================

// BodyLimitMiddleware caps the request body at n bytes. Handlers see an
// *http.MaxBytesError when a body is larger.
func BodyLimitMiddleware(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// ============================================================================
// Logging
// ============================================================================

// LoggingMiddleware logs every request with its status and latency and counts
// it in metrics when metrics is non-nil.
func LoggingMiddleware(logger *zap.Logger, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if metrics != nil {
			metrics.ObserveHTTP(route, status)
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if status >= 500 {
			logger.Error("REQUEST", fields...)
		} else {
			logger.Info("REQUEST", fields...)
		}
	}
}

// ============================================================================
// Security Headers
// ============================================================================

// SecurityHeadersMiddleware adds the standard hardening headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'")
		h.Set("Cache-Control", "no-store")
		h.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// ============================================================================
// Recovery
// ============================================================================

// RecoveryMiddleware turns handler panics into 500 responses and logs the
// stack.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("PANIC_RECOVERED",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()))
				abortError(c, http.StatusInternalServerError, "server_error", "Internal Server Error")
			}
		}()
		c.Next()
	}
}
