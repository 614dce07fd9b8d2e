package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the request correlation ID. The platform
	// gateway forwards it; requests arriving without one get a fresh UUID so
	// every settlement stays traceable end to end.
	CorrelationIDHeader = "X-Correlation-ID"

	// CorrelationIDKey is the gin context key the correlation ID is stored under
	CorrelationIDKey = "correlation_id"
)

// CorrelationID tags every request with a correlation ID, minting one when
// the caller did not send the header. The ID is echoed back in the response
// so clients can quote it when reporting a failed operation.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(CorrelationIDHeader, id)
		c.Set(CorrelationIDKey, id)
		c.Next()
	}
}

// GetCorrelationID returns the request's correlation ID, or "" when the
// middleware did not run.
func GetCorrelationID(c *gin.Context) string {
	v, ok := c.Get(CorrelationIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
