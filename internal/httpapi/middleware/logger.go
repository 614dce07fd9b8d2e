package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger emits one structured line per request after the handler returns.
// The line carries the correlation ID and, when the request was
// authenticated, the acting user, so ledger mutations can be matched to the
// transaction rows they produced.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := logger
		if id := GetCorrelationID(c); id != "" {
			l = l.With("correlation_id", id)
		}

		c.Next()

		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if actorID, ok := GetActorID(c); ok {
			attrs = append(attrs, "actor_id", actorID.String())
		}
		l.Info("HTTP request", attrs...)
	}
}
