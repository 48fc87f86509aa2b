package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// sessionKeyPrefix — префикс ключей активных сессий
const sessionKeyPrefix = "session:"

// SessionStore хранит сессии в Redis как JSON с TTL.
// Запись одной сессии сериализуется блокировкой на уровне сервиса.
type SessionStore struct {
	client redis.UniversalClient
}

// NewSessionStore создает хранилище сессий
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

// Create сохраняет новую сессию, если ID ещё не занят
func (s *SessionStore) Create(ctx context.Context, session *entity.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	created, err := s.client.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session %s: %w", session.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", repository.ErrSessionExists, session.ID)
	}
	return nil
}

// Get возвращает сессию или apperrors.ErrNotFound, если её нет или она истекла
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*entity.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var session entity.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Save перезаписывает сессию и продлевает TTL
func (s *SessionStore) Save(ctx context.Context, session *entity.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
