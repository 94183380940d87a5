package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ragconsole/internal/metrics"
)

func slogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logRequest(c, start)
	}
}

func logRequest(c *gin.Context, start time.Time) {
	statusCode := c.Writer.Status()
	latency := time.Since(start)

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	metrics.RecordHTTPRequest(c.Request.Method, path, statusCode, latency)

	slog.Log(c.Request.Context(), getLogLevel(statusCode), "HTTP Request",
		"status", statusCode,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"query", c.Request.URL.RawQuery,
		"ip", c.ClientIP(),
		"latency", latency.String(),
		"user_agent", c.Request.UserAgent(),
	)
}

func getLogLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= 500:
		return slog.LevelError
	case statusCode >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c)
		c.Next()
	}
}

func handlePanic(c *gin.Context) {
	if err := recover(); err != nil {
		slog.Error("panic recovered",
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"ip", c.ClientIP(),
		)

		InternalServerErrorResponse(c, "internal server error")
		c.Abort()
	}
}

func corsMiddleware(policy *originPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.allow(c.Request) {
			slog.Warn("request from disallowed origin",
				"origin", c.Request.Header.Get("Origin"),
				"host", c.Request.Host,
				"path", c.Request.URL.Path,
			)
			ErrorResponse(c, http.StatusForbidden, string(ErrForbidden), "origin not allowed")
			c.Abort()
			return
		}

		if origin := c.Request.Header.Get("Origin"); origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Confirm-Token, X-Requested-With, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
