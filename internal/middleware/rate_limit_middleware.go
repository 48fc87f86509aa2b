package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests — максимальное количество запросов за Window
	MaxRequests int
	// Window — временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix — префикс для ключей в Redis
	KeyPrefix string
}

// SessionStartRateLimitConfig — лимит стартов сессий одного игрока
func SessionStartRateLimitConfig(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 30
	}
	return RateLimitConfig{
		MaxRequests: perMinute,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:session:start",
	}
}

// AdminRateLimitConfig — общий лимит на админские endpoints (выгрузки тяжёлые)
func AdminRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 60,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:admin",
	}
}

// RateLimiter создаёт middleware для rate limiting на основе Redis (фиксированное окно)
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// LimitByIP ограничивает количество запросов по IP (без привязки к path)
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.enforce(c, cfg, fmt.Sprintf("%s:ip:%s", cfg.KeyPrefix, c.ClientIP()))
	}
}

// LimitByUser ограничивает количество запросов игрока. Ставится после RequireAuth;
// без игрока в контексте лимит считается по IP.
func (rl *RateLimiter) LimitByUser(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:ip:%s", cfg.KeyPrefix, c.ClientIP())
		if userID, ok := c.Get(ContextUserID); ok {
			key = fmt.Sprintf("%s:user:%v", cfg.KeyPrefix, userID)
		}
		rl.enforce(c, cfg, key)
	}
}

// enforce считает запросы в фиксированном окне. INCR и TTL уходят одним MULTI;
// ключ без срока жизни (первый запрос или потерянный EXPIRE) получает окно заново.
func (rl *RateLimiter) enforce(c *gin.Context, cfg RateLimitConfig, key string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var incr *redis.IntCmd
	var ttlCmd *redis.DurationCmd
	_, err := rl.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttlCmd = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		// Redis недоступен: пропускаем запрос (fail-open)
		log.Printf("[RateLimiter] Redis error for key %s: %v. Allowing request (fail-open).", key, err)
		c.Next()
		return
	}

	count := incr.Val()
	ttl := ttlCmd.Val()
	if ttl < 0 {
		if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
			log.Printf("[RateLimiter] Failed to set TTL for key %s: %v", key, err)
		}
		ttl = cfg.Window
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	retryAfter := int(ttl.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(retryAfter))

	if int(count) > cfg.MaxRequests {
		log.Printf("[RateLimiter] Rate limit exceeded for key=%s. Count=%d, Limit=%d", key, count, cfg.MaxRequests)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests. Please try again later.",
			"error_type":  "rate_limited",
			"retry_after": retryAfter,
		})
		return
	}

	c.Next()
}
