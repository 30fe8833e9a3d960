package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/careerbot/internal/auth"
	"github.com/suPer8Hu/careerbot/internal/common"
)

const (
	UserIDKey      = "user_id"
	AdminKeyHeader = "X-Admin-Key"
)

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// OptionalAuth binds the user id when a valid token is sent. Anonymous requests
// pass through; a bad token is rejected so clients notice it expired.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			c.Next()
			return
		}
		uid, err := auth.ParseJWT(tok, secret)
		if err != nil {
			c.Abort()
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			c.Abort()
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		uid, err := auth.ParseJWT(tok, secret)
		if err != nil {
			c.Abort()
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// AdminKey guards admin routes. An empty key disables them.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Abort()
			common.Fail(c, http.StatusServiceUnavailable, 50300, "admin api disabled")
			return
		}
		got := c.GetHeader(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.Abort()
			common.Fail(c, http.StatusUnauthorized, 40103, "invalid admin key")
			return
		}
		c.Next()
	}
}
