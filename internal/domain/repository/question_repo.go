package repository

import (
	"context"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с пулом вопросов.
// Правильные ответы возвращает только ResolveAnswers.
type QuestionRepository interface {
	// ListIDsByTier возвращает ID активных вопросов уровня, кроме исключённых
	ListIDsByTier(ctx context.Context, tier entity.Tier, excludeIDs []uint) ([]uint, error)
	CountByTier(ctx context.Context, tier entity.Tier) (int64, error)
	// ListPublicByIDs возвращает вопросы без правильных ответов в порядке ids
	ListPublicByIDs(ctx context.Context, ids []uint) ([]entity.PublicQuestion, error)
	ResolveAnswers(ctx context.Context, ids []uint) ([]entity.AnswerKey, error)

	// Счётчики использования (best-effort, атомарный инкремент)
	RecordShown(ctx context.Context, ids []uint) error
	RecordCorrect(ctx context.Context, ids []uint) error

	// Статистика пула для администрирования
	ListWithStats(ctx context.Context, tier *entity.Tier) ([]entity.Question, error)
	CountActiveByTier(ctx context.Context) (map[entity.Tier]int64, error)
}
