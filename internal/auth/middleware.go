package auth

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// Middleware authenticates the bearer token and stores the actor in the
// gin context. Requests without a valid token are rejected with 401.
func Middleware(provider IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		actor, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the actor set by Middleware
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// SetActor stores an actor directly; used by tests and internal routes.
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(actorKey, actor)
}

func abortUnauthorized(c *gin.Context, err error) {
	details := "Invalid token"
	switch {
	case errors.Is(err, ErrMissingToken):
		details = "Authorization header missing"
	case errors.Is(err, ErrExpiredToken):
		details = "Token has expired"
	case errors.Is(err, ErrInvalidFormat):
		details = "Invalid token format"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message": "Authentication required",
		"details": details,
		"code":    "UNAUTHORIZED",
	})
}
