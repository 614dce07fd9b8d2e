package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ActorIDHeader carries the authenticated user's ID. The upstream
	// gateway authenticates the request and injects this header; the
	// ledger trusts it as the acting identity.
	ActorIDHeader = "X-User-ID"

	// ActorIDKey is the key used to store the actor ID in the context
	ActorIDKey = "actor_id"
)

// ActorID middleware extracts the acting user's ID from the request headers
func ActorID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(ActorIDHeader); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				c.Set(ActorIDKey, id)
			}
		}

		c.Next()
	}
}

// GetActorID retrieves the acting user's ID from the gin context
func GetActorID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(ActorIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}
