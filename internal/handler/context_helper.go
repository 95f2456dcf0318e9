package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ilmhub/qa-api/internal/middleware"
	"github.com/ilmhub/qa-api/internal/models"
)

// claimsFromContext returns the authenticated caller's claims, or nil
// for anonymous requests on OptionalJWT routes. Services treat nil
// claims as the public view.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
