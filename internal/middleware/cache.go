package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CachePublic marks GET responses as cacheable by shared caches for the
// given lifetime. Intended for the anonymous read surface (published
// questions, the category taxonomy) where staleness is acceptable.
// Non-GET requests on the same routes are never cached.
func CachePublic(maxAge time.Duration) gin.HandlerFunc {
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	directive := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Header("Cache-Control", directive)
		} else {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}

// NoStore forbids any caching of the response. Used on authenticated
// routes whose payloads are scoped to the caller.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
