package repository

import (
	"context"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// SessionStore хранит активные сессии (Redis)
type SessionStore interface {
	// Create сохраняет новую сессию; ErrSessionExists, если ID занят
	Create(ctx context.Context, session *entity.Session, ttl time.Duration) error
	// Get возвращает сессию или apperrors.ErrNotFound
	Get(ctx context.Context, sessionID string) (*entity.Session, error)
	Save(ctx context.Context, session *entity.Session, ttl time.Duration) error
}

// LockRepository — распределённые блокировки с токеном владельца
type LockRepository interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Unlock(ctx context.Context, key string, token string) error
}
