package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facedesk/internal/clock"
)

// TokenSource yields the current backend session token.
type TokenSource interface {
	SessionToken() (string, bool)
}

// RequireSession rejects requests that would reach token-protected backend
// endpoints without a live session. Expiry is judged by clk.
func RequireSession(source TokenSource, key string, clk clock.Clock) gin.HandlerFunc {
	if clk == nil {
		clk = clock.New()
	}
	return func(c *gin.Context) {
		token, _ := source.SessionToken()
		session, err := ParseSession(token, key, clk.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "backend session missing or expired"})
			return
		}
		c.Set("session", session)
		c.Next()
	}
}
