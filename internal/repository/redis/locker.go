package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// lockKeyPrefix — префикс ключей блокировок
const lockKeyPrefix = "lock:"

// unlockScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
// Истёкшая и перехваченная блокировка не снимается чужим Unlock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker реализует repository.LockRepository на SET NX PX
type Locker struct {
	client redis.UniversalClient
}

// NewLocker создает репозиторий блокировок
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// TryLock пытается взять блокировку без ожидания
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock снимает блокировку, если токен совпадает
func (l *Locker) Unlock(ctx context.Context, key string, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
