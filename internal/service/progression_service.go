package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100

	// Кешируется одна выборка на maxLeaderboardLimit, меньшие лимиты режутся из неё
	leaderboardCacheKey = "leaderboard:top"
	leaderboardCacheTTL = 30 * time.Second
)

// ChallengeEvaluator считает прогресс челленджей по итогам сессии
type ChallengeEvaluator interface {
	Evaluate(ctx context.Context, playerID uint, tier entity.Tier, outcome engine.Outcome, at time.Time) (*ChallengeEvaluation, error)
	ListForPlayer(ctx context.Context, playerID uint, at time.Time) ([]ChallengeStatus, error)
}

// PlayerProgression — прогресс игрока для чтения
type PlayerProgression struct {
	Profile       entity.PlayerProfile       `json:"profile"`
	XPToNextLevel int64                      `json:"xp_to_next_level"`
	Achievements  []entity.PlayerAchievement `json:"achievements"`
	Challenges    []ChallengeStatus          `json:"challenges"`
}

// ProgressionService начисляет награды ровно один раз на сессию и отдаёт прогресс игроков
type ProgressionService struct {
	progressionRepo repository.ProgressionRepository
	cacheRepo       repository.CacheRepository
	locker          repository.LockRepository
	challenges      ChallengeEvaluator
	engineCfg       *engine.Config
	settings        config.ProgressionSettings
	now             func() time.Time
}

// NewProgressionService создает новый сервис прогресса
func NewProgressionService(
	progressionRepo repository.ProgressionRepository,
	cacheRepo repository.CacheRepository,
	locker repository.LockRepository,
	challenges ChallengeEvaluator,
	engineCfg *engine.Config,
	settings config.ProgressionSettings,
) *ProgressionService {
	return &ProgressionService{
		progressionRepo: progressionRepo,
		cacheRepo:       cacheRepo,
		locker:          locker,
		challenges:      challenges,
		engineCfg:       engineCfg,
		settings:        settings,
		now:             time.Now,
	}
}

func resultCacheKey(sessionID string) string {
	return "reward:result:" + sessionID
}

// ApplyReward начисляет награду за завершённую сессию.
// Повторный вызов с тем же sessionID возвращает сохранённый результат без повторного начисления.
func (s *ProgressionService) ApplyReward(ctx context.Context, session *entity.Session, outcome engine.Outcome) (*entity.CompletionResult, error) {
	if cached, err := s.GetCompletionResult(ctx, session.ID); err == nil {
		return cached, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// Блокировка игрока только снижает число конфликтов версий.
	// Ровно-однократность обеспечивает уникальный session_id в журнале наград.
	lockKey := fmt.Sprintf("player:%d", session.PlayerID)
	token, locked, err := acquireLock(ctx, s.locker, lockKey,
		durationOr(s.settings.LockTTLSec, time.Second, 10*time.Second),
		durationOr(s.settings.LockWaitMs, time.Millisecond, 2*time.Second))
	if err != nil {
		log.Printf("[ProgressionService] Не удалось взять блокировку игрока %d: %v", session.PlayerID, err)
	}
	if locked {
		defer func() {
			if err := s.locker.Unlock(context.Background(), lockKey, token); err != nil {
				log.Printf("[ProgressionService] Ошибка снятия блокировки %s: %v", lockKey, err)
			}
		}()
	}

	maxAttempts := s.settings.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := durationOr(s.settings.BackoffMs, time.Millisecond, 50*time.Millisecond)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := s.tryApply(ctx, session, outcome)
		switch {
		case err == nil:
			s.cacheResult(ctx, result)
			s.invalidateLeaderboard(ctx)
			log.Printf("[ProgressionService] Сессия %s: игроку %d начислено %d очков, %d XP",
				session.ID, session.PlayerID, result.Rewards.TotalPoints, result.Rewards.TotalXP)
			return result, nil

		case errors.Is(err, repository.ErrDuplicateApplication):
			// Награду записал конкурентный запрос: отдаём его результат
			log.Printf("[ProgressionService] Сессия %s уже начислена, возвращаем сохранённый результат", session.ID)
			return s.loadLedgerResult(ctx, session.ID)

		case errors.Is(err, repository.ErrVersionConflict):
			log.Printf("[ProgressionService] Конфликт версии профиля игрока %d (попытка %d/%d)",
				session.PlayerID, attempt, maxAttempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff * time.Duration(attempt)):
			}

		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: player %d profile keeps changing", engine.ErrSessionBusy, session.PlayerID)
}

// tryApply читает профиль, считает начисление и пытается записать его одной транзакцией
func (s *ProgressionService) tryApply(ctx context.Context, session *entity.Session, outcome engine.Outcome) (*entity.CompletionResult, error) {
	playedAt := s.now().UTC()
	if session.FinishedAt != nil {
		playedAt = session.FinishedAt.UTC()
	}

	profile, err := s.progressionRepo.GetProfile(ctx, session.PlayerID)
	isNew := false
	if errors.Is(err, apperrors.ErrNotFound) {
		profile = entity.NewPlayerProfile(session.PlayerID)
		isNew = true
	} else if err != nil {
		return nil, fmt.Errorf("failed to load profile of player %d: %w", session.PlayerID, err)
	}

	achievements, err := s.progressionRepo.ListAchievements(ctx, session.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements of player %d: %w", session.PlayerID, err)
	}
	unlocked := make(map[entity.AchievementCode]bool, len(achievements))
	for _, a := range achievements {
		unlocked[a.Code] = true
	}

	evaluation, err := s.challenges.Evaluate(ctx, session.PlayerID, session.Tier, outcome, playedAt)
	if err != nil {
		return nil, err
	}

	progression := s.engineCfg.ApplyProgression(engine.ProgressionInput{
		Profile:    *profile,
		Unlocked:   unlocked,
		SessionID:  session.ID,
		Tier:       session.Tier,
		Outcome:    outcome,
		PlayedAt:   playedAt,
		Challenges: evaluation.Completed,
	})

	completed := evaluation.Completed
	if completed == nil {
		completed = []entity.CompletedChallenge{}
	}
	result := &entity.CompletionResult{
		SessionID:           session.ID,
		PlayerID:            session.PlayerID,
		Tier:                session.Tier,
		CorrectCount:        outcome.CorrectCount,
		Total:               outcome.Total,
		Accuracy:            outcome.Accuracy,
		IsWin:               outcome.IsWin,
		IsPerfect:           outcome.IsPerfect,
		PoolExhausted:       session.PoolExhausted,
		Rewards:             progression.Rewards,
		Progression:         progression.Progression,
		Achievements:        progression.Achievements,
		CompletedChallenges: completed,
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion result: %w", err)
	}

	commit := &entity.ProgressionCommit{
		Ledger: entity.RewardLedgerEntry{
			SessionID: session.ID,
			PlayerID:  session.PlayerID,
			Points:    progression.Rewards.TotalPoints,
			XP:        progression.Rewards.TotalXP,
			Result:    payload,
		},
		Profile:           progression.Profile,
		ExpectedVersion:   profile.Version,
		IsNewProfile:      isNew,
		Achievements:      progression.NewAchievements,
		ChallengeProgress: evaluation.Progress,
		Archive:           archiveRecord(session, outcome, playedAt),
	}
	if err := s.progressionRepo.ApplyCommit(ctx, commit); err != nil {
		return nil, err
	}
	return result, nil
}

// GetCompletionResult возвращает сохранённый результат завершения сессии (кеш, затем журнал)
func (s *ProgressionService) GetCompletionResult(ctx context.Context, sessionID string) (*entity.CompletionResult, error) {
	var cached entity.CompletionResult
	err := s.cacheRepo.GetJSON(ctx, resultCacheKey(sessionID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[ProgressionService] Ошибка чтения кеша результата %s: %v", sessionID, err)
	}
	return s.loadLedgerResult(ctx, sessionID)
}

func (s *ProgressionService) loadLedgerResult(ctx context.Context, sessionID string) (*entity.CompletionResult, error) {
	entry, err := s.progressionRepo.GetLedgerEntry(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var result entity.CompletionResult
	if err := json.Unmarshal(entry.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result of session %s: %w", sessionID, err)
	}
	s.cacheResult(ctx, &result)
	return &result, nil
}

func (s *ProgressionService) cacheResult(ctx context.Context, result *entity.CompletionResult) {
	ttl := durationOr(s.settings.ResultCacheMin, time.Minute, 24*time.Hour)
	if err := s.cacheRepo.SetJSON(ctx, resultCacheKey(result.SessionID), result, ttl); err != nil {
		log.Printf("[ProgressionService] Не удалось закешировать результат %s: %v", result.SessionID, err)
	}
}

// GetSessionRecord возвращает архивную запись завершённой сессии
func (s *ProgressionService) GetSessionRecord(ctx context.Context, sessionID string) (*entity.SessionRecord, error) {
	return s.progressionRepo.GetSessionRecord(ctx, sessionID)
}

// GetProgression возвращает профиль игрока, его достижения и активные челленджи.
// Игрок без сыгранных сессий получает профиль уровня 1.
func (s *ProgressionService) GetProgression(ctx context.Context, playerID uint) (*PlayerProgression, error) {
	profile, err := s.progressionRepo.GetProfile(ctx, playerID)
	if errors.Is(err, apperrors.ErrNotFound) {
		profile = entity.NewPlayerProfile(playerID)
		profile.Title = s.engineCfg.TitleForLevel(profile.Level)
	} else if err != nil {
		return nil, err
	}

	achievements, err := s.progressionRepo.ListAchievements(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if achievements == nil {
		achievements = []entity.PlayerAchievement{}
	}

	challenges, err := s.challenges.ListForPlayer(ctx, playerID, s.now())
	if err != nil {
		return nil, err
	}

	return &PlayerProgression{
		Profile:       *profile,
		XPToNextLevel: s.engineCfg.XPToNextLevel(profile.XP),
		Achievements:  achievements,
		Challenges:    challenges,
	}, nil
}

// Leaderboard возвращает игроков с наибольшим опытом
func (s *ProgressionService) Leaderboard(ctx context.Context, limit int) ([]entity.PlayerProfile, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	var top []entity.PlayerProfile
	err := s.cacheRepo.GetJSON(ctx, leaderboardCacheKey, &top)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[ProgressionService] Ошибка чтения кеша лидерборда: %v", err)
		}
		top, err = s.progressionRepo.TopByXP(ctx, maxLeaderboardLimit)
		if err != nil {
			return nil, err
		}
		if err := s.cacheRepo.SetJSON(ctx, leaderboardCacheKey, top, leaderboardCacheTTL); err != nil {
			log.Printf("[ProgressionService] Не удалось закешировать лидерборд: %v", err)
		}
	}

	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

// invalidateLeaderboard сбрасывает кеш после начисления: порядок мог измениться
func (s *ProgressionService) invalidateLeaderboard(ctx context.Context) {
	if err := s.cacheRepo.Delete(ctx, leaderboardCacheKey); err != nil {
		log.Printf("[ProgressionService] Не удалось сбросить кеш лидерборда: %v", err)
	}
}

// archiveRecord строит архивную запись завершённой сессии
func archiveRecord(session *entity.Session, outcome engine.Outcome, finishedAt time.Time) *entity.SessionRecord {
	return &entity.SessionRecord{
		ID:           session.ID,
		PlayerID:     session.PlayerID,
		Tier:         session.Tier,
		QuestionIDs:  entity.UintArray(session.QuestionIDs),
		CorrectIDs:   entity.UintArray(session.CorrectIDs),
		CorrectCount: outcome.CorrectCount,
		Total:        outcome.Total,
		Accuracy:     outcome.Accuracy,
		IsWin:        outcome.IsWin,
		StartedAt:    session.StartedAt,
		FinishedAt:   finishedAt,
	}
}
