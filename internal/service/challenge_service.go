package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

// ChallengeEvaluation — изменения прогресса челленджей после одной сессии.
// Progress пишется в БД той же транзакцией, что и награда.
type ChallengeEvaluation struct {
	Completed []entity.CompletedChallenge
	Progress  []entity.ChallengeProgress
}

// ChallengeStatus — челлендж вместе с прогрессом игрока
type ChallengeStatus struct {
	Challenge entity.Challenge `json:"challenge"`
	Progress  int64            `json:"progress"`
	Completed bool             `json:"completed"`
}

// CreateChallengeInput — параметры нового челленджа
type CreateChallengeInput struct {
	Title        string
	Kind         entity.ChallengeKind
	Tier         *entity.Tier
	Target       int64
	RewardPoints int64
	RewardXP     int64
	StartsAt     time.Time
	EndsAt       time.Time
}

// ChallengeService управляет челленджами и считает их прогресс по итогам сессий
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
}

// NewChallengeService создает новый сервис челленджей
func NewChallengeService(challengeRepo repository.ChallengeRepository) *ChallengeService {
	return &ChallengeService{challengeRepo: challengeRepo}
}

// CreateChallenge создает челлендж после проверки параметров
func (s *ChallengeService) CreateChallenge(ctx context.Context, input CreateChallengeInput) (*entity.Challenge, error) {
	challenge := &entity.Challenge{
		Title:        input.Title,
		Kind:         input.Kind,
		Tier:         input.Tier,
		Target:       input.Target,
		RewardPoints: input.RewardPoints,
		RewardXP:     input.RewardXP,
		StartsAt:     input.StartsAt.UTC(),
		EndsAt:       input.EndsAt.UTC(),
	}
	if err := challenge.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}

	if err := s.challengeRepo.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	log.Printf("[ChallengeService] Создан челлендж #%d %q (%s, цель %d)", challenge.ID, challenge.Title, challenge.Kind, challenge.Target)
	return challenge, nil
}

// Evaluate считает, как сессия продвигает активные челленджи игрока.
// Ничего не записывает: результат уходит в общую транзакцию начисления.
func (s *ChallengeService) Evaluate(
	ctx context.Context,
	playerID uint,
	tier entity.Tier,
	outcome engine.Outcome,
	at time.Time,
) (*ChallengeEvaluation, error) {
	evaluation := &ChallengeEvaluation{}

	challenges, err := s.challengeRepo.ListActive(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}
	if len(challenges) == 0 {
		return evaluation, nil
	}

	progressByChallenge, err := s.progressMap(ctx, playerID, challenges)
	if err != nil {
		return nil, err
	}

	for _, ch := range challenges {
		if !ch.Matches(tier) {
			continue
		}
		delta := progressDelta(ch.Kind, outcome)
		if delta == 0 {
			continue
		}

		progress, ok := progressByChallenge[ch.ID]
		if !ok {
			progress = entity.ChallengeProgress{ChallengeID: ch.ID, PlayerID: playerID}
		}
		if progress.IsCompleted() {
			continue
		}

		progress.Progress += delta
		progress.UpdatedAt = at
		if progress.Progress >= ch.Target {
			completedAt := at
			progress.CompletedAt = &completedAt
			evaluation.Completed = append(evaluation.Completed, entity.CompletedChallenge{
				ChallengeID: ch.ID,
				Title:       ch.Title,
				Points:      ch.RewardPoints,
				XP:          ch.RewardXP,
			})
		}
		evaluation.Progress = append(evaluation.Progress, progress)
	}

	return evaluation, nil
}

// ListForPlayer возвращает активные челленджи с прогрессом игрока
func (s *ChallengeService) ListForPlayer(ctx context.Context, playerID uint, at time.Time) ([]ChallengeStatus, error) {
	challenges, err := s.challengeRepo.ListActive(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}

	progressByChallenge, err := s.progressMap(ctx, playerID, challenges)
	if err != nil {
		return nil, err
	}

	statuses := make([]ChallengeStatus, 0, len(challenges))
	for _, ch := range challenges {
		p := progressByChallenge[ch.ID]
		statuses = append(statuses, ChallengeStatus{
			Challenge: ch,
			Progress:  p.Progress,
			Completed: p.IsCompleted(),
		})
	}
	return statuses, nil
}

func (s *ChallengeService) progressMap(ctx context.Context, playerID uint, challenges []entity.Challenge) (map[uint]entity.ChallengeProgress, error) {
	ids := make([]uint, 0, len(challenges))
	for _, ch := range challenges {
		ids = append(ids, ch.ID)
	}
	rows, err := s.challengeRepo.ListProgress(ctx, playerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge progress: %w", err)
	}
	byChallenge := make(map[uint]entity.ChallengeProgress, len(rows))
	for _, row := range rows {
		byChallenge[row.ChallengeID] = row
	}
	return byChallenge, nil
}

// progressDelta — вклад сессии в челлендж данного типа
func progressDelta(kind entity.ChallengeKind, outcome engine.Outcome) int64 {
	switch kind {
	case entity.ChallengeKindSessions:
		return 1
	case entity.ChallengeKindWins:
		if outcome.IsWin {
			return 1
		}
	case entity.ChallengeKindPerfect:
		if outcome.IsPerfect {
			return 1
		}
	case entity.ChallengeKindPoints:
		return outcome.Reward.Points
	}
	return 0
}
