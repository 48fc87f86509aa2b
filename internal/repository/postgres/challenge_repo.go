package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// ChallengeRepo реализует repository.ChallengeRepository
type ChallengeRepo struct {
	db *gorm.DB
}

// NewChallengeRepo создает новый репозиторий челленджей
func NewChallengeRepo(db *gorm.DB) *ChallengeRepo {
	return &ChallengeRepo{db: db}
}

// Create создает новый челлендж
func (r *ChallengeRepo) Create(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// ListActive возвращает челленджи, идущие в момент at
func (r *ChallengeRepo) ListActive(ctx context.Context, at time.Time) ([]entity.Challenge, error) {
	var challenges []entity.Challenge
	err := r.db.WithContext(ctx).
		Where("starts_at <= ? AND ends_at > ?", at, at).
		Order("id").
		Find(&challenges).Error
	return challenges, err
}

// ListProgress возвращает прогресс игрока по указанным челленджам
func (r *ChallengeRepo) ListProgress(ctx context.Context, playerID uint, challengeIDs []uint) ([]entity.ChallengeProgress, error) {
	if len(challengeIDs) == 0 {
		return []entity.ChallengeProgress{}, nil
	}

	var progress []entity.ChallengeProgress
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND challenge_id IN ?", playerID, challengeIDs).
		Find(&progress).Error
	return progress, err
}
