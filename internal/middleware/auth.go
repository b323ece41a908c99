package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"callbridge-backend/pkg/jwt"
	"callbridge-backend/pkg/response"
)

// AuthMiddleware creates a Gin middleware that validates JWT access
// tokens. The token comes from the Authorization header, or from the
// token query parameter for WebSocket upgrades, where browsers cannot
// set headers. If valid, user_id and username are set in the Gin
// context.
func AuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			response.Unauthorized(c, "Authorization required")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
