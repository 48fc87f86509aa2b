package service

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
)

// QuestionStat — строка статистики вопроса для экспорта
type QuestionStat struct {
	ID           uint        `json:"id"`
	Tier         entity.Tier `json:"tier"`
	Topic        string      `json:"topic"`
	Text         string      `json:"text"`
	IsActive     bool        `json:"is_active"`
	TimesShown   int64       `json:"times_shown"`
	TimesCorrect int64       `json:"times_correct"`
	// AccuracyPercent — доля правильных ответов в процентах, округлённая до десятых
	AccuracyPercent float64 `json:"accuracy_percent"`
}

// PoolStats — размер активного пула по уровням
type PoolStats struct {
	Tier       entity.Tier `json:"tier"`
	Active     int64       `json:"active"`
	PerSession int         `json:"per_session"`
	Exhausted  bool        `json:"exhausted"`
}

// StatsService отдаёт статистику пула вопросов для администрирования
type StatsService struct {
	questionRepo repository.QuestionRepository
}

// NewStatsService создает новый сервис статистики
func NewStatsService(questionRepo repository.QuestionRepository) *StatsService {
	return &StatsService{questionRepo: questionRepo}
}

// QuestionStats возвращает счётчики показов и правильных ответов (tier = nil — все уровни)
func (s *StatsService) QuestionStats(ctx context.Context, tier *entity.Tier) ([]QuestionStat, error) {
	questions, err := s.questionRepo.ListWithStats(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to load question stats: %w", err)
	}

	stats := make([]QuestionStat, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		stats = append(stats, QuestionStat{
			ID:              q.ID,
			Tier:            q.Tier,
			Topic:           q.Topic,
			Text:            q.Text,
			IsActive:        q.IsActive,
			TimesShown:      q.TimesShown,
			TimesCorrect:    q.TimesCorrect,
			AccuracyPercent: math.Round(q.AccuracyRate()*1000) / 10,
		})
	}
	return stats, nil
}

// PoolStats возвращает размер активного пула по каждому уровню.
// perSession — сколько вопросов берёт одна сессия уровня.
func (s *StatsService) PoolStats(ctx context.Context, perSession map[entity.Tier]int) ([]PoolStats, error) {
	counts, err := s.questionRepo.CountActiveByTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active questions: %w", err)
	}

	stats := make([]PoolStats, 0, len(counts))
	for _, tier := range entity.AllTiers() {
		stats = append(stats, PoolStats{
			Tier:       tier,
			Active:     counts[tier],
			PerSession: perSession[tier],
			Exhausted:  counts[tier] < int64(perSession[tier]),
		})
	}
	return stats, nil
}
