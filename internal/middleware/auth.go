package middleware

import (
	"net/http"
	"strings"

	"example.com/pixsoul/internal/session"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireAuth resolves the session cookie to a user id and attaches it to
// the request context. Without a valid session, API routes get a 401 JSON
// response and page routes a redirect to the login page.
func RequireAuth(sessions session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(session.CookieName)
		if err != nil || token == "" {
			reject(c)
			return
		}

		userID, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			reject(c)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func reject(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}
	c.Redirect(http.StatusFound, "/index.html")
	c.Abort()
}

// UserID extracts the authenticated user id set by RequireAuth.
func UserID(c *gin.Context) (int, bool) {
	id, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := id.(int)
	return userID, ok
}
