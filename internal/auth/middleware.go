package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireSession verifies a session token and injects the user identity into the request context.
// When enforce is false requests pass through untouched.
func RequireSession(m *Manager, enforce bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enforce {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "unauthorized"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), claims))

		c.Next()
	}
}

// SameUser reports whether the request may act as userID. Requests without a
// verified session (enforcement off) may act as anyone.
func SameUser(c *gin.Context, userID string) bool {
	claims, ok := SessionFrom(c.Request.Context())
	if !ok {
		return true
	}
	return claims.UserID == userID
}
