package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey    = "userID"
	userIDHeader = "X-User-ID"
)

// RequireUser reads the caller's Discord user id from X-User-ID and stores it
// in the context. Requests without it are rejected with 401; every reminder
// operation is scoped by this id. The id is not authenticated here; the
// deployment must ensure only a trusted proxy or network can set it.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(userIDHeader))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.GetString(requestIDKey),
				"code":       "unauthorized",
				"message":    "X-User-ID header is required",
			})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// UserID returns the id stored by RequireUser, or "".
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
