package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discord-bot/internal/ratelimit"
)

// KeyFunc selects the identity a request is rate limited under.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys by the caller's user id when known (from RequireUser or
// the raw X-User-ID header) and falls back to the client IP. Keys are
// prefixed so the two namespaces cannot collide.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		if uid := strings.TrimSpace(c.GetHeader(userIDHeader)); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimit rejects requests whose bucket is empty with 429 and a
// Retry-After hint. A nil limiter lets everything through.
func RateLimit(limiter *ratelimit.Keyed, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return func(c *gin.Context) {
		if limiter.Allow(keyFn(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.GetString(requestIDKey),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
