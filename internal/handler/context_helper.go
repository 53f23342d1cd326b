package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/safevoice-app/safevoice-api/internal/middleware"
	"github.com/safevoice-app/safevoice-api/internal/models"
)

// actorFromContext builds the acting administrator identity from the JWT
// claims set by the auth middleware plus the request network metadata.
// Unauthenticated routes yield an actor with only IP and user agent set.
func actorFromContext(c *gin.Context) models.Actor {
	actor := models.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if raw, ok := c.Get(middleware.ContextUserKey); ok {
		if claims, ok := raw.(*models.JWTClaims); ok {
			actor.ID = claims.UserID
			actor.Email = claims.Email
			actor.Role = claims.Role
		}
	}
	return actor
}
