package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// LoggingConfig controls the request logging middleware.
type LoggingConfig struct {
	// SkipPaths lists exact request paths that are never logged. Health and
	// metrics probes are noisy and carry no information.
	SkipPaths []string

	// SlowThreshold marks requests slower than this duration as slow and
	// raises their log severity to warning.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the logging configuration used in production.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogging logs one line per request with method, path, status, latency
// and the request identifier. Severity follows the response: 5xx logs at
// error, 4xx and slow requests at warning, everything else at info.
func RequestLogging(log logging.Logger, cfg LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("latency", elapsed),
			logging.String("client_ip", c.ClientIP()),
			logging.Int("bytes", c.Writer.Size()),
		}
		if id := RequestIDFrom(c); id != "" {
			fields = append(fields, logging.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		case cfg.SlowThreshold > 0 && elapsed > cfg.SlowThreshold:
			fields = append(fields, logging.Bool("slow", true))
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
