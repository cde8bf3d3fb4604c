package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MycelicMemory/irm/internal/logging"
	"github.com/MycelicMemory/irm/internal/ratelimit"
)

// =============================================================================
// REQUEST LOGGING MIDDLEWARE
// =============================================================================

// RequestLoggingMiddleware returns middleware that logs every inbound
// request and its outcome through log, tagging each with the model id path
// parameter when the route carries one.
func RequestLoggingMiddleware(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		log.LogHTTPRequest(method, path, "model_id", c.Param("id"))
		c.Next()

		log.LogHTTPResponse(method, path, c.Writer.Status(), time.Since(started), "model_id", c.Param("id"))
	}
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

// APIKeyAuthMiddleware returns middleware that checks for a valid API key.
// Health endpoint is exempt. No-op if apiKey is empty.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// No-op if no API key configured
		if apiKey == "" {
			c.Next()
			return
		}

		// Health endpoint is always accessible
		if c.Request.URL.Path == "/api/v1/health" {
			c.Next()
			return
		}

		// Check Authorization: Bearer <key>
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == apiKey {
				c.Next()
				return
			}
		}

		// Check X-API-Key header
		if c.GetHeader("X-API-Key") == apiKey {
			c.Next()
			return
		}

		UnauthorizedError(c, "Invalid or missing API key")
		c.Abort()
	}
}

// =============================================================================
// RATE LIMIT MIDDLEWARE
// =============================================================================

// routeToToolCategory maps API routes to rate limiter tool categories.
func routeToToolCategory(path, method string) string {
	switch {
	case strings.Contains(path, "/sweep"):
		return "sweep"
	case strings.Contains(path, "/resample"):
		return "resample"
	case method == "POST" && strings.Contains(path, "/snapshot"):
		return "snapshot_save"
	case strings.Contains(path, "/domains") || strings.Contains(path, "/relations"):
		return "inspect"
	default:
		return ""
	}
}

// RateLimitMiddleware returns middleware that rate-limits requests using the provided limiter
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		toolCategory := routeToToolCategory(c.Request.URL.Path, c.Request.Method)
		if toolCategory == "" {
			toolCategory = "default"
		}

		// Routes under /models/:id get a rate-limit budget scoped to that
		// model, so a sweep hammering one model can't starve inspect or
		// snapshot traffic against every other model the server is holding.
		var result *ratelimit.LimitResult
		if modelID := c.Param("id"); modelID != "" {
			result = limiter.AllowForModel(toolCategory, modelID)
		} else {
			result = limiter.Allow(toolCategory)
		}
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			TooManyRequestsError(c, fmt.Sprintf("Rate limit exceeded for %s. Retry after %d seconds.", result.LimitType, retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// =============================================================================
// BODY SIZE MIDDLEWARE
// =============================================================================

// MaxBodySizeMiddleware returns middleware that limits request body size
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			PayloadTooLargeError(c, fmt.Sprintf("Request body too large. Maximum: %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// =============================================================================
// VALIDATION CONSTANTS
// =============================================================================

const (
	MaxLimit         = 1000
	DefaultLimit     = 50
	DefaultBodyLimit = 1 * 1024 * 1024  // 1MB
	IngestBodyLimit  = 10 * 1024 * 1024 // 10MB
)

// clampLimit ensures limit is within valid range
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// validateIterations checks that a requested sweep iteration count is
// positive and bounded, so a single misconfigured request can't tie up a
// run indefinitely.
func validateIterations(n int) error {
	if n <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", n)
	}
	if n > 100000 {
		return fmt.Errorf("iterations too large: %d (maximum: 100000)", n)
	}
	return nil
}
