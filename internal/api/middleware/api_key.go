package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyMiddleware requires the X-API-Key header to match. keyHash is a
// bcrypt hash of the key and wins over the plain key when both are set.
// With neither set the check is disabled.
func APIKeyMiddleware(key, keyHash string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	hash := []byte(strings.TrimSpace(keyHash))

	var matches func(token string) bool
	switch {
	case len(hash) > 0:
		matches = func(token string) bool {
			return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
		}
	case key != "":
		matches = func(token string) bool {
			return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
		}
	default:
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		// Header only, so the key never lands in access logs.
		token := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if token == "" || !matches(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
