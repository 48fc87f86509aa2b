package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// ListIDsByTier возвращает ID активных вопросов уровня, кроме исключённых.
// Выбираются только ID: случайная выборка делается в памяти.
func (r *QuestionRepo) ListIDsByTier(ctx context.Context, tier entity.Tier, excludeIDs []uint) ([]uint, error) {
	var ids []uint

	query := r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("tier = ? AND is_active = ?", tier, true)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	err := query.Order("id").Pluck("id", &ids).Error
	return ids, err
}

// CountByTier возвращает количество активных вопросов уровня
func (r *QuestionRepo) CountByTier(ctx context.Context, tier entity.Tier) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("tier = ? AND is_active = ?", tier, true).
		Count(&count).Error
	return count, err
}

// ListPublicByIDs возвращает вопросы без правильного ответа.
// Колонка correct_option не выбирается вовсе.
func (r *QuestionRepo) ListPublicByIDs(ctx context.Context, ids []uint) ([]entity.PublicQuestion, error) {
	if len(ids) == 0 {
		return []entity.PublicQuestion{}, nil
	}

	var questions []entity.PublicQuestion
	err := r.db.WithContext(ctx).Model(&entity.Question{}).
		Select("id", "text", "options", "tier", "topic").
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// ResolveAnswers возвращает правильные ответы и число вариантов для проверки ответа
func (r *QuestionRepo) ResolveAnswers(ctx context.Context, ids []uint) ([]entity.AnswerKey, error) {
	if len(ids) == 0 {
		return []entity.AnswerKey{}, nil
	}

	var keys []entity.AnswerKey
	err := r.db.WithContext(ctx).Model(&entity.Question{}).
		Select("id, correct_option, jsonb_array_length(options) AS option_count").
		Where("id IN ?", ids).
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// RecordShown атомарно увеличивает счётчик показов
func (r *QuestionRepo) RecordShown(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("id IN ?", ids).
		UpdateColumn("times_shown", gorm.Expr("times_shown + ?", 1)).Error
}

// RecordCorrect атомарно увеличивает счётчик правильных ответов
func (r *QuestionRepo) RecordCorrect(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("id IN ?", ids).
		UpdateColumn("times_correct", gorm.Expr("times_correct + ?", 1)).Error
}

// ListWithStats возвращает вопросы со счётчиками для экспорта (tier = nil — все уровни)
func (r *QuestionRepo) ListWithStats(ctx context.Context, tier *entity.Tier) ([]entity.Question, error) {
	var questions []entity.Question

	query := r.db.WithContext(ctx).Model(&entity.Question{})
	if tier != nil {
		query = query.Where("tier = ?", *tier)
	}

	err := query.Order("tier, id").Find(&questions).Error
	return questions, err
}

// CountActiveByTier возвращает размер активного пула по каждому уровню
func (r *QuestionRepo) CountActiveByTier(ctx context.Context) (map[entity.Tier]int64, error) {
	var rows []struct {
		Tier  entity.Tier
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&entity.Question{}).
		Select("tier, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entity.Tier]int64, len(entity.AllTiers()))
	for _, tier := range entity.AllTiers() {
		counts[tier] = 0
	}
	for _, row := range rows {
		counts[row.Tier] = row.Count
	}
	return counts, nil
}
