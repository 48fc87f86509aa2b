package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// Роли в токене
const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

var (
	// ErrInvalidToken — подпись, формат или издатель токена некорректны
	ErrInvalidToken = fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	// ErrTokenExpired — срок действия токена истёк
	ErrTokenExpired = fmt.Errorf("token is expired: %w", apperrors.ErrUnauthorized)
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin проверяет роль администратора
func (c *JWTCustomClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// JWTService проверяет и (для CLI и тестов) выпускает HMAC-токены.
// Игроков аутентифицирует внешний сервис, общий с ним только секрет.
type JWTService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewJWTService создает новый сервис JWT
func NewJWTService(secret, issuer string, expirationHrs int) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	return &JWTService{
		secret:     []byte(secret),
		issuer:     issuer,
		expiration: time.Duration(expirationHrs) * time.Hour,
	}, nil
}

// GenerateToken выпускает токен игрока с ролью role
func (s *JWTService) GenerateToken(userID uint, role string) (string, error) {
	if userID == 0 {
		return "", fmt.Errorf("%w: user id is required", apperrors.ErrValidation)
	}
	if role == "" {
		role = RolePlayer
	}

	now := time.Now()
	claims := &JWTCustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, срок действия и издателя токена
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc)
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		log.Printf("[JWT] Ошибка проверки токена: %v", err)
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		log.Printf("[JWT] Неожиданный издатель токена: %q", claims.Issuer)
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
