package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"callbridge-backend/pkg/env"
)

// devOrigins are accepted when CORS_ALLOWED_ORIGINS is unset, so local
// web clients work out of the box.
var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8080",
}

// CORSMiddleware answers preflight requests and sets CORS headers for
// origins on the allow list. Browser requests from any other origin are
// rejected outright.
func CORSMiddleware() gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, origin := range devOrigins {
		allowed[origin] = struct{}{}
	}
	for _, origin := range strings.Split(env.GetString("CORS_ALLOWED_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; !ok {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
