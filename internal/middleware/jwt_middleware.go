package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// JWTMiddleware guards the admin API with the HS256 session token issued at
// login.
type JWTMiddleware struct {
	limiter *InvalidAuthRateLimiter
}

func NewJWTMiddleware(limiter *InvalidAuthRateLimiter) *JWTMiddleware {
	return &JWTMiddleware{limiter: limiter}
}

func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, "UNAUTHORIZED", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(c, "UNAUTHORIZED", "Invalid authorization header")
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			m.reject(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("admin_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, code, message string) {
	if m.limiter != nil && !m.limiter.Allow(c.ClientIP()) {
		utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
		c.Abort()
		return
	}
	utils.Error(c, 401, code, message)
	c.Abort()
}

// AdminID returns the authenticated admin user id, or 0.
func AdminID(c *gin.Context) int {
	return c.GetInt("admin_id")
}
