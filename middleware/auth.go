package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/models"
	"github.com/pollhub/polls-server/utils"
)

const (
	CtxUser = "user"

	// AuthCookie carries the same JWT as the Authorization header for the
	// server-rendered pages.
	AuthCookie = "auth_token"
)

// bearerToken extracts the JWT from the Authorization header, falling back
// to the auth cookie for browser requests.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

func lookupUser(c *gin.Context) (models.User, bool) {
	raw := bearerToken(c)
	if raw == "" {
		return models.User{}, false
	}

	claims, err := utils.VerifyToken(raw)
	if err != nil {
		return models.User{}, false
	}

	uid, err := strconv.ParseUint(claims.UserID, 10, 64)
	if err != nil {
		return models.User{}, false
	}

	var user models.User
	if err := config.DB.First(&user, uid).Error; err != nil {
		return models.User{}, false
	}
	return user, true
}

// AuthJWT validates the caller's JWT, loads the user and injects it into the
// request context. Browser requests without a token are redirected to the
// login page instead of getting a JSON 401.
func AuthJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := lookupUser(c)
		if !ok {
			if wantsHTML(c) {
				c.Redirect(http.StatusSeeOther, "/login?next="+c.Request.URL.Path)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid credentials"})
			return
		}
		c.Set(CtxUser, user)
		c.Next()
	}
}

// OptionalAuth injects the user when a valid token is present but lets
// anonymous requests through.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := lookupUser(c); ok {
			c.Set(CtxUser, user)
		}
		c.Next()
	}
}

// RequireAdmin guards admin-only routes. Must run after AuthJWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUser)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		u := v.(models.User)
		if !u.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}
		c.Next()
	}
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
