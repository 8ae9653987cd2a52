package http

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/giovaborgogno/siwe-auth/config"
	"github.com/giovaborgogno/siwe-auth/service"
)

// contextAddressKey carries the authenticated checksum address through
// the request context.
const contextAddressKey = "walletAddress"

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRF-Token"
)

// AuthMiddleware creates middleware that validates Bearer access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": MessageStatus401})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": MessageStatus401})
			return
		}

		c.Set(contextAddressKey, session.Address)
		c.Next()
	}
}

// CSRFMiddleware is a double-submit-cookie check for the mutating
// endpoints. Safe methods receive the cookie; mutating requests must
// echo it in the CSRF header. Disabled by the CSRFExempt config toggle.
func CSRFMiddleware(cfg *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Load().CSRFExempt {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if _, err := c.Cookie(csrfCookieName); err != nil {
				token, err := newCSRFToken()
				if err == nil {
					c.SetCookie(csrfCookieName, token, 0, "/", "", false, false)
				}
			}
			c.Next()
			return
		}

		cookie, err := c.Cookie(csrfCookieName)
		header := c.GetHeader(csrfHeaderName)
		if err != nil || header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": MessageStatus403})
			return
		}
		c.Next()
	}
}

func newCSRFToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
