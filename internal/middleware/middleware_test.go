package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/microlearn-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService("middleware-secret", "", 1)
	require.NoError(t, err)
	return svc
}

func performRequest(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, svc *auth.JWTService, userID uint, role string) map[string]string {
	t.Helper()
	token, err := svc.GenerateToken(userID, role)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

// ============================================================================
// RequireAuth / AdminOnly
// ============================================================================

func newAuthRouter(svc *auth.JWTService) *gin.Engine {
	m := NewAuthMiddleware(svc)
	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(ContextUserID), "is_admin": c.GetBool(ContextIsAdmin)})
	})
	r.GET("/admin", m.RequireAuth(), m.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	svc := newTestJWT(t)
	r := newAuthRouter(svc)

	forged := bearer(t, newTestJWTWithSecret(t, "other"), 5, auth.RolePlayer)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantType   string
	}{
		{"нет заголовка", nil, http.StatusUnauthorized, "token_missing"},
		{"не Bearer", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized, "token_format"},
		{"пустой токен", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized, "token_format"},
		{"чужая подпись", forged, http.StatusUnauthorized, "token_invalid"},
		{"валидный токен", bearer(t, svc, 5, auth.RolePlayer), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(r, http.MethodGet, "/me", tt.headers)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, body["error_type"])
			} else {
				assert.Equal(t, float64(5), body["user_id"])
				assert.Equal(t, false, body["is_admin"])
			}
		})
	}
}

func newTestJWTWithSecret(t *testing.T, secret string) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(secret, "", 1)
	require.NoError(t, err)
	return svc
}

func TestAdminOnly(t *testing.T) {
	svc := newTestJWT(t)
	r := newAuthRouter(svc)

	player := performRequest(r, http.MethodGet, "/admin", bearer(t, svc, 5, auth.RolePlayer))
	admin := performRequest(r, http.MethodGet, "/admin", bearer(t, svc, 1, auth.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, player.Code)
	assert.Equal(t, http.StatusNoContent, admin.Code)
}

func TestAdminOnly_WithoutAuth(t *testing.T) {
	m := NewAuthMiddleware(newTestJWT(t))
	r := gin.New()
	r.GET("/admin", m.AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := performRequest(r, http.MethodGet, "/admin", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// ExtractUUIDParam
// ============================================================================

func TestExtractUUIDParam(t *testing.T) {
	r := gin.New()
	r.GET("/sessions/:id", ExtractUUIDParam("id", "sessionID"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("sessionID"))
	})

	bad := performRequest(r, http.MethodGet, "/sessions/not-a-uuid", nil)
	good := performRequest(r, http.MethodGet, "/sessions/6F9619FF-8B86-D011-B42D-00C04FC964FF", nil)

	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, http.StatusOK, good.Code)
	assert.Equal(t, strings.ToLower("6F9619FF-8B86-D011-B42D-00C04FC964FF"), good.Body.String())
}

// ============================================================================
// RateLimiter
// ============================================================================

func newLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client), mr
}

func TestLimitByUser(t *testing.T) {
	// Arrange
	limiter, mr := newLimiter(t)
	cfg := RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test"}
	r := gin.New()
	r.POST("/start", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(ContextUserID, id)
		}
		c.Next()
	}, limiter.LimitByUser(cfg), func(c *gin.Context) { c.Status(http.StatusCreated) })
	alice := map[string]string{"X-Test-User": "1"}
	bob := map[string]string{"X-Test-User": "2"}

	// Act
	first := performRequest(r, http.MethodPost, "/start", alice)
	second := performRequest(r, http.MethodPost, "/start", alice)
	third := performRequest(r, http.MethodPost, "/start", alice)
	other := performRequest(r, http.MethodPost, "/start", bob)

	// Assert
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusCreated, other.Code)

	// Новое окно
	mr.FastForward(time.Minute + time.Second)
	again := performRequest(r, http.MethodPost, "/start", alice)
	assert.Equal(t, http.StatusCreated, again.Code)
}

func TestLimitByIP(t *testing.T) {
	limiter, _ := newLimiter(t)
	r := gin.New()
	r.GET("/admin", limiter.LimitByIP(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:test"}),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	first := performRequest(r, http.MethodGet, "/admin", nil)
	second := performRequest(r, http.MethodGet, "/admin", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimiter_FailOpen(t *testing.T) {
	limiter, mr := newLimiter(t)
	mr.Close()
	r := gin.New()
	r.GET("/x", limiter.LimitByIP(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:test"}),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/x", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_RearmsCounterWithoutTTL(t *testing.T) {
	limiter, mr := newLimiter(t)
	// Счётчик остался без срока жизни
	require.NoError(t, mr.Set("rl:test:ip:192.0.2.1", "5"))
	r := gin.New()
	r.GET("/x", limiter.LimitByIP(RateLimitConfig{MaxRequests: 3, Window: time.Minute, KeyPrefix: "rl:test"}),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/x", nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, time.Minute, mr.TTL("rl:test:ip:192.0.2.1"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, performRequest(r, http.MethodGet, "/x", nil).Code)
}
