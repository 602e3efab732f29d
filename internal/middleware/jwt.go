package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openpolls/backend/internal/auth"
	"github.com/openpolls/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// extractToken pulls the JWT from the Authorization header or, for browser
// navigation, from the token cookie.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := c.Cookie(auth.TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// JWT returns a middleware that validates the JWT and sets user claims in
// context, rejecting anonymous requests with 401.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing credentials")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// RequireUserOrLogin returns a middleware for browser-facing pages: anonymous
// or expired sessions are redirected (302) to the login page instead of 401.
func RequireUserOrLogin(jwtService *auth.JWTService, loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Redirect(c, loginURL, "Please log in to continue.")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Redirect(c, loginURL, "Session expired, please log in again.")
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
}
