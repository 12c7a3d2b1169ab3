// Package middleware provides HTTP middleware for the tracker core.
// This file implements request timeout enforcement.
//
// Purpose:
// The timeout middleware protects the API server from slow clients and long-running
// operations that could exhaust server resources. It enforces maximum request
// duration limits and returns 408 Request Timeout if the limit is exceeded.
//
// Implementation Details:
// - Uses Go context.WithTimeout for cancellation propagation
// - Runs handler in goroutine to detect timeout vs completion
// - Configurable timeout duration per route (via excluded paths)
// - Automatic exclusions for long-running operations (WebSocket, uploads)
// - Graceful cleanup: context cancellation signals handlers to abort
//
// Security Notes:
// This middleware prevents several attack vectors:
//
// 1. Slow Clients:
//    - Attacker sends HTTP headers very slowly (1 byte per minute)
//    - This middleware runs only after the headers are read, so slow
//      headers are bounded by the http.Server read timeouts set in
//      cmd/trackerd, not by this middleware
//
// 2. Denial of Service (Resource Exhaustion):
//    - Attacker triggers expensive database queries or computations
//    - Without timeout: Server CPU/memory consumed until crash
//    - With timeout: Operation aborted after limit, resources freed
//
// 3. Accidental Long Operations:
//    - Bug causes infinite loop or extremely slow query
//    - Without timeout: Server hangs indefinitely
//    - With timeout: Request fails quickly, server recovers
//
// Performance Characteristics:
// - Overhead: <1ms per request (goroutine spawn + channel operations)
// - Memory: ~4KB per request (goroutine stack + channel)
// - Cleanup: Automatic via defer and context cancellation
//
// Thread Safety:
// Safe for concurrent use. Each request has its own timeout context.
//
// Usage:
//   // Use default 30-second timeout
//   config := middleware.DefaultTimeoutConfig()
//   router.Use(middleware.Timeout(config))
//
//   // Custom timeout duration
//   router.Use(middleware.TimeoutWithDuration(60*time.Second))
//
//   // Exclude specific paths (long-running operations)
//   config := middleware.TimeoutConfig{
//       Timeout: 30*time.Second,
//       ExcludedPaths: []string{
//           "/api/v1/ws/",      // WebSocket connections
//           "/api/v1/upload",   // File uploads
//           "/api/v1/export",   // Data exports (can be slow)
//       },
//   }
//   router.Use(middleware.Timeout(config))
//
// Configuration:
//   Timeout: 30*time.Second        // Maximum request duration
//   ErrorMessage: "Request timeout" // Error message returned to client
//   ExcludedPaths: []string{...}   // Paths to skip timeout enforcement
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutConfig holds configuration for request timeouts
type TimeoutConfig struct {
	// Timeout is the maximum duration for the entire request
	Timeout time.Duration

	// ErrorMessage is the message returned when timeout occurs
	ErrorMessage string

	// ExcludedPaths are paths that should not have timeout applied
	// (e.g., WebSocket endpoints, file uploads)
	ExcludedPaths []string
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout:      30 * time.Second,
		ErrorMessage: "Request timeout",
		ExcludedPaths: []string{
			"/api/v1/ws/",    // WebSocket endpoints
			"/api/v1/upload", // File uploads
		},
	}
}

// Timeout middleware enforces a timeout on requests to prevent slow loris attacks
// and ensure resources are freed in a timely manner
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	// Build exclusion map for fast lookup
	excluded := make(map[string]bool)
	for _, path := range config.ExcludedPaths {
		excluded[path] = true
	}

	return func(c *gin.Context) {
		// Check if path should be excluded
		path := c.Request.URL.Path
		for excludedPath := range excluded {
			if len(path) >= len(excludedPath) && path[:len(excludedPath)] == excludedPath {
				c.Next()
				return
			}
		}

		// Create context with timeout
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()

		// Replace request context
		c.Request = c.Request.WithContext(ctx)

		// Channel to signal completion
		finished := make(chan struct{})

		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
			// Request completed successfully
			return
		case <-ctx.Done():
			// Timeout occurred
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error":   config.ErrorMessage,
				"message": "The request took too long to process",
				"timeout": config.Timeout.String(),
			})
			return
		}
	}
}

// TimeoutWithDuration creates a timeout middleware with specified duration
func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Timeout = timeout
	return Timeout(config)
}
