package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sasachat/sasachat/pkg/jwt"
	"github.com/sasachat/sasachat/pkg/response"
)

const (
	UserIDKey     = "user_id"
	NicknameKey   = "nickname"
	RolesKey      = "roles"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates a session token.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware authenticates requests with the session token carried in
// the Authorization header or the session cookie.
type AuthMiddleware struct {
	validator  TokenValidator
	cookieName string
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, cookieName: cookieName}
}

// RequireAuth rejects requests without a valid session token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.tokenFrom(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing session token")
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid session token")
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets the
// request through either way.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := m.tokenFrom(c); token != "" {
			if claims, err := m.validator.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) tokenFrom(c *gin.Context) string {
	if h := c.GetHeader(AuthHeaderKey); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix))
	}
	if m.cookieName != "" {
		if v, err := c.Cookie(m.cookieName); err == nil {
			return v
		}
	}
	return ""
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(NicknameKey, claims.Nickname)
	c.Set(RolesKey, claims.Roles)
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetNickname extracts the nickname from Gin context.
func GetNickname(c *gin.Context) string {
	return c.GetString(NicknameKey)
}
