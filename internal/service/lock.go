package service

import (
	"context"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/repository"
)

// lockRetryInterval — пауза между попытками взять занятую блокировку
const lockRetryInterval = 25 * time.Millisecond

// acquireLock пытается взять блокировку, ожидая не дольше wait.
// acquired = false без ошибки означает, что блокировка так и осталась занятой.
func acquireLock(
	ctx context.Context,
	locker repository.LockRepository,
	key string,
	ttl, wait time.Duration,
) (token string, acquired bool, err error) {
	deadline := time.Now().Add(wait)
	for {
		token, acquired, err = locker.TryLock(ctx, key, ttl)
		if err != nil || acquired {
			return token, acquired, err
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// durationOr возвращает value единиц unit или fallback, если value не задано
func durationOr(value int, unit, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * unit
}
