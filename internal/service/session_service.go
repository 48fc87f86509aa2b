package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

const (
	// counterTimeout ограничивает фоновое обновление счётчиков вопросов
	counterTimeout = 5 * time.Second
	// completeTimeout ограничивает общее для одновременных запросов завершение сессии
	completeTimeout = 15 * time.Second
)

// RewardApplier начисляет награду за завершённую сессию ровно один раз
type RewardApplier interface {
	ApplyReward(ctx context.Context, session *entity.Session, outcome engine.Outcome) (*entity.CompletionResult, error)
	GetCompletionResult(ctx context.Context, sessionID string) (*entity.CompletionResult, error)
	GetSessionRecord(ctx context.Context, sessionID string) (*entity.SessionRecord, error)
}

// StartSessionInput — параметры старта сессии
type StartSessionInput struct {
	PlayerID    uint
	Tier        entity.Tier
	ExcludedIDs []uint
	Seed        int64
	SessionID   string // UUID от клиента; пусто — выдаёт сервер
}

// StartSessionResult — созданная сессия и её вопросы без правильных ответов
type StartSessionResult struct {
	Session   *entity.Session
	Questions []entity.PublicQuestion
	Exhausted bool
}

// SessionState — сессия на момент чтения
type SessionState struct {
	Session          *entity.Session
	CurrentQuestion  *entity.PublicQuestion
	RemainingSeconds int
}

// SessionService ведёт сессии от старта до начисления награды
type SessionService struct {
	questionRepo repository.QuestionRepository
	sessionStore repository.SessionStore
	locker       repository.LockRepository
	rewards      RewardApplier
	selector     *engine.PoolSelector
	engineCfg    *engine.Config
	settings     config.SessionSettings

	completeGroup singleflight.Group
	now           func() time.Time
	newID         func() string
}

// NewSessionService создает новый сервис сессий
func NewSessionService(
	questionRepo repository.QuestionRepository,
	sessionStore repository.SessionStore,
	locker repository.LockRepository,
	rewards RewardApplier,
	engineCfg *engine.Config,
	settings config.SessionSettings,
) *SessionService {
	return &SessionService{
		questionRepo: questionRepo,
		sessionStore: sessionStore,
		locker:       locker,
		rewards:      rewards,
		selector:     engine.NewPoolSelector(questionRepo, engineCfg.MaxExcludedIDs),
		engineCfg:    engineCfg,
		settings:     settings,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (s *SessionService) sessionTTL() time.Duration {
	return durationOr(s.settings.TTLMin, time.Minute, 2*time.Hour)
}

// Tiers возвращает параметры всех уровней сложности по возрастанию
func (s *SessionService) Tiers() []engine.TierConfig {
	tiers := make([]engine.TierConfig, 0, len(s.engineCfg.Tiers))
	for _, tc := range s.engineCfg.Tiers {
		tiers = append(tiers, tc)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Tier < tiers[j].Tier })
	return tiers
}

// StartSession выбирает вопросы и создаёт активную сессию
func (s *SessionService) StartSession(ctx context.Context, input StartSessionInput) (*StartSessionResult, error) {
	if input.PlayerID == 0 {
		return nil, fmt.Errorf("%w: player id is required", apperrors.ErrValidation)
	}
	if _, err := s.engineCfg.TierConfig(input.Tier); err != nil {
		return nil, err
	}
	sessionID, err := s.resolveSessionID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	tier, selection, err := s.selectForTier(ctx, input.Tier, input.ExcludedIDs, input.Seed)
	if err != nil {
		return nil, err
	}
	tc, err := s.engineCfg.TierConfig(tier)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(selection.Questions))
	for _, q := range selection.Questions {
		ids = append(ids, q.ID)
	}

	session, err := engine.StartSession(sessionID, input.PlayerID, tier, ids, tc.TimePerQuestionSec, s.now().UTC())
	if err != nil {
		return nil, err
	}
	session.RequestedTier = input.Tier
	session.PoolExhausted = selection.Exhausted

	if err := s.sessionStore.Create(ctx, session, s.sessionTTL()); err != nil {
		if errors.Is(err, repository.ErrSessionExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.recordShownAsync(ids)

	log.Printf("[SessionService] Игрок %d начал сессию %s (уровень %s, запрошен %s, вопросов %d, исчерпан=%v)",
		input.PlayerID, session.ID, tier, input.Tier, len(ids), selection.Exhausted)

	return &StartSessionResult{
		Session:   session,
		Questions: selection.Questions,
		Exhausted: selection.Exhausted,
	}, nil
}

// resolveSessionID проверяет ID, переданный клиентом, или выдаёт новый.
// ID уже завершённой сессии повторно не используется, даже если она вытеснена из Redis.
func (s *SessionService) resolveSessionID(ctx context.Context, requested string) (string, error) {
	if requested == "" {
		return s.newID(), nil
	}
	parsed, err := uuid.Parse(requested)
	if err != nil {
		return "", fmt.Errorf("%w: session id must be a UUID", apperrors.ErrValidation)
	}
	id := parsed.String()

	_, err = s.rewards.GetSessionRecord(ctx, id)
	switch {
	case err == nil:
		return "", fmt.Errorf("%w: %s", repository.ErrSessionExists, id)
	case errors.Is(err, apperrors.ErrNotFound):
		return id, nil
	default:
		return "", fmt.Errorf("failed to check session %s: %w", id, err)
	}
}

// selectForTier выбирает вопросы с учётом политики нехватки вопросов
func (s *SessionService) selectForTier(
	ctx context.Context,
	requested entity.Tier,
	excludedIDs []uint,
	seed int64,
) (entity.Tier, *engine.SelectionResult, error) {
	minToStart := 1
	if s.engineCfg.StarvedTierPolicy != engine.StarvedTierServe {
		minToStart = s.engineCfg.MinQuestionsToStart
	}

	tier := requested
	for {
		selection, err := s.drawQuestions(ctx, tier, excludedIDs, seed)
		if err != nil {
			return 0, nil, err
		}
		if len(selection.Questions) >= minToStart {
			return tier, selection, nil
		}

		if s.engineCfg.StarvedTierPolicy == engine.StarvedTierDowngrade {
			if lower, ok := tier.Lower(); ok {
				log.Printf("[SessionService] Уровень %s: всего %d вопросов, переходим на %s",
					tier, len(selection.Questions), lower)
				tier = lower
				continue
			}
		}
		return 0, nil, fmt.Errorf("%w: tier %s has %d questions, need %d",
			engine.ErrPoolExhausted, tier, len(selection.Questions), minToStart)
	}
}

// drawQuestions выбирает вопросы уровня. Если исключения не оставили полного набора,
// а сам пул достаточен, выбор повторяется без исключений; exhausted при этом остаётся true.
func (s *SessionService) drawQuestions(
	ctx context.Context,
	tier entity.Tier,
	excludedIDs []uint,
	seed int64,
) (*engine.SelectionResult, error) {
	tc, err := s.engineCfg.TierConfig(tier)
	if err != nil {
		return nil, err
	}

	selection, err := s.selector.SelectQuestions(ctx, tier, tc.QuestionCount, excludedIDs, seed)
	if err != nil {
		return nil, err
	}
	if !selection.Exhausted || len(excludedIDs) == 0 {
		return selection, nil
	}

	poolSize, err := s.questionRepo.CountByTier(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions of tier %s: %w", tier, err)
	}
	if poolSize <= int64(len(selection.Questions)) {
		return selection, nil
	}

	fresh, err := s.selector.SelectQuestions(ctx, tier, tc.QuestionCount, nil, seed)
	if err != nil {
		return nil, err
	}
	if len(fresh.Questions) > len(selection.Questions) {
		fresh.Exhausted = true
		return fresh, nil
	}
	return selection, nil
}

// GetSession возвращает состояние сессии с учётом истёкших таймеров.
// Чтение ничего не записывает: истечения фиксируются при следующей записи.
// Завершённая сессия, вытесненная из Redis, восстанавливается из архива.
func (s *SessionService) GetSession(ctx context.Context, playerID uint, sessionID string) (*SessionState, error) {
	session, err := s.loadOwned(ctx, playerID, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.archivedState(ctx, playerID, sessionID)
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	engine.CatchUpDeadlines(session, now)

	state := &SessionState{
		Session:          session,
		RemainingSeconds: engine.RemainingSeconds(session, now),
	}
	if qid, ok := session.CurrentQuestionID(); ok && session.IsActive() {
		questions, err := s.questionRepo.ListPublicByIDs(ctx, []uint{qid})
		if err != nil {
			return nil, fmt.Errorf("failed to load current question: %w", err)
		}
		if len(questions) > 0 {
			state.CurrentQuestion = &questions[0]
		}
	}
	return state, nil
}

// SubmitAnswer принимает ответ на текущий вопрос
func (s *SessionService) SubmitAnswer(
	ctx context.Context,
	playerID uint,
	sessionID string,
	questionIndex int,
	selectedOption int,
) (*engine.AnswerOutcome, error) {
	var outcome *engine.AnswerOutcome
	err := s.withSessionLock(ctx, playerID, sessionID, func(session *entity.Session) error {
		now := s.now().UTC()
		if late := engine.CatchUpForIndex(session, questionIndex, now); late != nil {
			outcome = late
			return nil
		}
		if err := engine.CheckTransition(session, questionIndex); err != nil {
			return err
		}

		questionID := session.QuestionIDs[questionIndex]
		keys, err := s.questionRepo.ResolveAnswers(ctx, []uint{questionID})
		if err != nil {
			return fmt.Errorf("failed to resolve answer for question %d: %w", questionID, err)
		}
		if len(keys) == 0 {
			return fmt.Errorf("%w: question %d", apperrors.ErrNotFound, questionID)
		}

		outcome, err = engine.SubmitAnswer(session, questionIndex, selectedOption, keys[0], now)
		if err != nil {
			return err
		}
		if outcome.Correct {
			s.recordCorrectAsync(questionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ExpireQuestion фиксирует истечение времени на текущем вопросе.
// Если дедлайн уже прошёл по часам сервера, вопрос закрывается догоном с тем же исходом.
func (s *SessionService) ExpireQuestion(ctx context.Context, playerID uint, sessionID string, questionIndex int) (*engine.AnswerOutcome, error) {
	var outcome *engine.AnswerOutcome
	err := s.withSessionLock(ctx, playerID, sessionID, func(session *entity.Session) error {
		now := s.now().UTC()
		if late := engine.CatchUpForIndex(session, questionIndex, now); late != nil {
			outcome = late
			return nil
		}
		var err error
		outcome, err = engine.ExpireCurrentQuestion(session, questionIndex, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// CompleteSession завершает сессию и начисляет награду.
// Повторные и одновременные вызовы возвращают один и тот же результат.
// Общий вызов не зависит от контекста первого запроса: его отключение не ломает остальные.
func (s *SessionService) CompleteSession(ctx context.Context, playerID uint, sessionID string) (*entity.CompletionResult, error) {
	// Проверка владельца до singleflight: общий результат получают только запросы владельца
	if _, err := s.loadOwned(ctx, playerID, sessionID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Сессия могла истечь в Redis уже после начисления
			return s.completedFromLedger(ctx, playerID, sessionID)
		}
		return nil, err
	}

	v, err, shared := s.completeGroup.Do(sessionID, func() (interface{}, error) {
		completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
		defer cancel()
		return s.complete(completeCtx, playerID, sessionID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Printf("[SessionService] Сессия %s: результат завершения разделён между одновременными запросами", sessionID)
	}
	return v.(*entity.CompletionResult), nil
}

func (s *SessionService) complete(ctx context.Context, playerID uint, sessionID string) (*entity.CompletionResult, error) {
	var finished *entity.Session
	err := s.withSessionLock(ctx, playerID, sessionID, func(session *entity.Session) error {
		engine.CatchUpDeadlines(session, s.now().UTC())
		if !session.IsFinished() {
			return fmt.Errorf("%w: question %d of %d is open",
				engine.ErrSessionStillActive, session.CurrentIndex+1, session.TotalQuestions())
		}
		finished = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome, err := s.engineCfg.ComputeOutcome(finished)
	if err != nil {
		return nil, err
	}
	return s.rewards.ApplyReward(ctx, finished, outcome)
}

func (s *SessionService) archivedState(ctx context.Context, playerID uint, sessionID string) (*SessionState, error) {
	record, err := s.rewards.GetSessionRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record.PlayerID != playerID {
		return nil, ErrNotSessionOwner
	}

	finishedAt := record.FinishedAt
	session := &entity.Session{
		ID:            record.ID,
		PlayerID:      record.PlayerID,
		Tier:          record.Tier,
		RequestedTier: record.Tier,
		QuestionIDs:   []uint(record.QuestionIDs),
		StartedAt:     record.StartedAt,
		CurrentIndex:  len(record.QuestionIDs),
		CorrectIDs:    []uint(record.CorrectIDs),
		Score:         record.CorrectCount,
		Status:        entity.SessionStatusFinished,
		FinishedAt:    &finishedAt,
	}
	if tc, err := s.engineCfg.TierConfig(record.Tier); err == nil {
		session.TimePerQuestionSec = tc.TimePerQuestionSec
	}
	return &SessionState{Session: session}, nil
}

func (s *SessionService) completedFromLedger(ctx context.Context, playerID uint, sessionID string) (*entity.CompletionResult, error) {
	result, err := s.rewards.GetCompletionResult(ctx, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: session %s not found", engine.ErrSessionNotActive, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if result.PlayerID != playerID {
		return nil, ErrNotSessionOwner
	}
	return result, nil
}

// withSessionLock загружает сессию под блокировкой, применяет fn и сохраняет результат
func (s *SessionService) withSessionLock(
	ctx context.Context,
	playerID uint,
	sessionID string,
	fn func(session *entity.Session) error,
) error {
	lockKey := "session:" + sessionID
	token, acquired, err := acquireLock(ctx, s.locker, lockKey,
		durationOr(s.settings.LockTTLSec, time.Second, 5*time.Second),
		durationOr(s.settings.LockWaitMs, time.Millisecond, time.Second))
	if err != nil {
		return fmt.Errorf("failed to lock session %s: %w", sessionID, err)
	}
	if !acquired {
		return engine.ErrSessionBusy
	}
	defer func() {
		if err := s.locker.Unlock(context.Background(), lockKey, token); err != nil {
			log.Printf("[SessionService] Ошибка снятия блокировки сессии %s: %v", sessionID, err)
		}
	}()

	session, err := s.loadOwned(ctx, playerID, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%w: session %s not found", engine.ErrSessionNotActive, sessionID)
	}
	if err != nil {
		return err
	}

	before := len(session.Answers)
	if err := fn(session); err != nil {
		// fn мог успеть зафиксировать истёкшие вопросы до ошибки
		if len(session.Answers) != before {
			if saveErr := s.sessionStore.Save(ctx, session, s.sessionTTL()); saveErr != nil {
				log.Printf("[SessionService] Не удалось сохранить сессию %s: %v", sessionID, saveErr)
			}
		}
		return err
	}
	if len(session.Answers) == before {
		return nil
	}
	if err := s.sessionStore.Save(ctx, session, s.sessionTTL()); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// loadOwned загружает сессию и проверяет, что она принадлежит игроку
func (s *SessionService) loadOwned(ctx context.Context, playerID uint, sessionID string) (*entity.Session, error) {
	session, err := s.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PlayerID != playerID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// recordShownAsync увеличивает счётчики показов в фоне. Ошибка только логируется.
func (s *SessionService) recordShownAsync(ids []uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
		defer cancel()
		if err := s.questionRepo.RecordShown(ctx, ids); err != nil {
			log.Printf("[SessionService] Ошибка обновления счётчика показов: %v", err)
		}
	}()
}

// recordCorrectAsync увеличивает счётчик правильных ответов в фоне
func (s *SessionService) recordCorrectAsync(questionID uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
		defer cancel()
		if err := s.questionRepo.RecordCorrect(ctx, []uint{questionID}); err != nil {
			log.Printf("[SessionService] Ошибка обновления счётчика правильных ответов: %v", err)
		}
	}()
}
