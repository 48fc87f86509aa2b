package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/microlearn-api/pkg/auth"
)

// Ключи контекста Gin, которые выставляет RequireAuth
const (
	ContextUserID  = "user_id"
	ContextRole    = "role"
	ContextIsAdmin = "is_admin"
)

// TokenParser проверяет access-токен
type TokenParser interface {
	ParseToken(tokenString string) (*auth.JWTCustomClaims, error)
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	tokenParser TokenParser
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(tokenParser TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokenParser: tokenParser}
}

// RequireAuth проверяет Bearer-токен и кладёт игрока в контекст
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			return
		}

		claims, err := m.tokenParser.ParseToken(parts[1])
		if err != nil {
			errorType := "token_invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				errorType = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": errorType})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextIsAdmin, claims.IsAdmin())
		c.Next()
	}
}

// AdminOnly пропускает только администраторов. Ставится после RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if !c.GetBool(ContextIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required"})
			return
		}

		c.Next()
	}
}
