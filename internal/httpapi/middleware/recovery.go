package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery converts a handler panic into a 500 response. A panic mid-request
// must never take the process down with in-flight settlements on other
// goroutines; the database transaction the handler was inside rolls back on
// its own when the connection unwinds.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			attrs := []any{
				"error", r,
				"stack", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			}
			if actorID, ok := GetActorID(c); ok {
				attrs = append(attrs, "actor_id", actorID.String())
			}
			logger.Error("Panic recovered", attrs...)

			body := gin.H{
				"error": gin.H{
					"code":    "INTERNAL_SERVER_ERROR",
					"message": "An internal server error occurred",
				},
			}
			if id := GetCorrelationID(c); id != "" {
				body["correlation_id"] = id
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()

		c.Next()
	}
}
