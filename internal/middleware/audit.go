package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ilmhub/qa-api/internal/models"
	"github.com/ilmhub/qa-api/internal/repository"
)

// Audit writes an audit log entry after each successful request on the
// route. Failed requests (4xx/5xx) are skipped so denied attempts do
// not pollute the trail. Write failures are ignored since auditing
// must never fail the request itself.
func Audit(repo *repository.UserRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		var actorID *string
		if claims := currentClaims(c); claims != nil {
			actorID = &claims.UserID
		}

		detail, _ := json.Marshal(gin.H{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:    actorID,
			Action:    action,
			Resource:  resource,
			NewValues: detail,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
