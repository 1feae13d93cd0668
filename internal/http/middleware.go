package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/allisson/courier/internal/correlation"
)

// CustomLoggerMiddleware logs every request and propagates the request id as the correlation
// id, so events appended while serving the request carry it.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if id := requestid.Get(c); id != "" {
			c.Request = c.Request.WithContext(correlation.WithCorrelationID(c.Request.Context(), id))
		}

		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		logger.InfoContext(c.Request.Context(), "http request", attrs...)
	}
}
