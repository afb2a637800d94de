package slogging

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware returns a Gin middleware for logging requests using slog
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get()

		// Store logger in context for handlers to use
		c.Set("logger", logger)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", duration),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.ErrorCtx(c.Request.Context(), "Request completed", attrs...)
		case c.Writer.Status() >= 400:
			logger.WarnCtx(c.Request.Context(), "Request completed", attrs...)
		default:
			logger.InfoCtx(c.Request.Context(), "Request completed", attrs...)
		}
	}
}
