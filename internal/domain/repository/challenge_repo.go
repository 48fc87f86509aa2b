package repository

import (
	"context"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// ChallengeRepository определяет методы для работы с челленджами
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *entity.Challenge) error
	ListActive(ctx context.Context, at time.Time) ([]entity.Challenge, error)
	ListProgress(ctx context.Context, playerID uint, challengeIDs []uint) ([]entity.ChallengeProgress, error)
}
