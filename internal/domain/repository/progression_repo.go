package repository

import (
	"context"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// ProgressionRepository определяет методы для работы с прогрессом игроков
type ProgressionRepository interface {
	// GetProfile возвращает профиль или apperrors.ErrNotFound
	GetProfile(ctx context.Context, playerID uint) (*entity.PlayerProfile, error)
	ListAchievements(ctx context.Context, playerID uint) ([]entity.PlayerAchievement, error)
	// GetLedgerEntry возвращает запись журнала наград или apperrors.ErrNotFound
	GetLedgerEntry(ctx context.Context, sessionID string) (*entity.RewardLedgerEntry, error)
	// ApplyCommit записывает журнал, профиль, достижения, прогресс челленджей и архив сессии
	// одной транзакцией. ErrDuplicateApplication — награда уже начислена,
	// ErrVersionConflict — профиль изменился конкурентно.
	ApplyCommit(ctx context.Context, commit *entity.ProgressionCommit) error
	TopByXP(ctx context.Context, limit int) ([]entity.PlayerProfile, error)
	GetSessionRecord(ctx context.Context, sessionID string) (*entity.SessionRecord, error)
}
