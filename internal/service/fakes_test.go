package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/domain/repository"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
	redisrepo "github.com/yourusername/microlearn-api/internal/repository/redis"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

// ============================================================================
// Фейковый пул вопросов
// ============================================================================

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[uint]entity.Question
	nextID    uint
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: make(map[uint]entity.Question), nextID: 1}
}

// add добавляет n активных вопросов уровня; правильный вариант = id % 4
func (r *fakeQuestionRepo) add(tier entity.Tier, n int) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		id := r.nextID
		r.nextID++
		r.questions[id] = entity.Question{
			ID:            id,
			Text:          "Вопрос",
			Options:       entity.StringArray{"a", "b", "c", "d"},
			CorrectOption: int(id % 4),
			Tier:          tier,
			IsActive:      true,
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *fakeQuestionRepo) correctOption(id uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questions[id].CorrectOption
}

func (r *fakeQuestionRepo) counters(id uint) (int64, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.questions[id]
	return q.TimesShown, q.TimesCorrect
}

func (r *fakeQuestionRepo) ListIDsByTier(ctx context.Context, tier entity.Tier, excludeIDs []uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skip := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}
	var ids []uint
	for id, q := range r.questions {
		if q.Tier == tier && q.IsActive && !skip[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeQuestionRepo) CountByTier(ctx context.Context, tier entity.Tier) (int64, error) {
	ids, _ := r.ListIDsByTier(ctx, tier, nil)
	return int64(len(ids)), nil
}

func (r *fakeQuestionRepo) ListPublicByIDs(ctx context.Context, ids []uint) ([]entity.PublicQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.PublicQuestion, 0, len(ids))
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			out = append(out, q.Public())
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) ResolveAnswers(ctx context.Context, ids []uint) ([]entity.AnswerKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]entity.AnswerKey, 0, len(ids))
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			keys = append(keys, entity.AnswerKey{QuestionID: id, CorrectOption: q.CorrectOption, OptionCount: len(q.Options)})
		}
	}
	return keys, nil
}

func (r *fakeQuestionRepo) RecordShown(ctx context.Context, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		q := r.questions[id]
		q.TimesShown++
		r.questions[id] = q
	}
	return nil
}

func (r *fakeQuestionRepo) RecordCorrect(ctx context.Context, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		q := r.questions[id]
		q.TimesCorrect++
		r.questions[id] = q
	}
	return nil
}

func (r *fakeQuestionRepo) ListWithStats(ctx context.Context, tier *entity.Tier) ([]entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Question
	for _, q := range r.questions {
		if tier == nil || q.Tier == *tier {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeQuestionRepo) CountActiveByTier(ctx context.Context) (map[entity.Tier]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[entity.Tier]int64)
	for _, q := range r.questions {
		if q.IsActive {
			counts[q.Tier]++
		}
	}
	return counts, nil
}

// ============================================================================
// Фейковая БД прогресса и челленджей (одна транзакция = одна критическая секция)
// ============================================================================

type fakeProgressDB struct {
	mu           sync.Mutex
	profiles     map[uint]entity.PlayerProfile
	achievements map[uint][]entity.PlayerAchievement
	ledger       map[string]entity.RewardLedgerEntry
	records      map[string]entity.SessionRecord
	challenges   []entity.Challenge
	progress     map[[2]uint]entity.ChallengeProgress

	commits           int
	injectConflicts   int
	duplicateAttempts int
}

func newFakeProgressDB() *fakeProgressDB {
	return &fakeProgressDB{
		profiles:     make(map[uint]entity.PlayerProfile),
		achievements: make(map[uint][]entity.PlayerAchievement),
		ledger:       make(map[string]entity.RewardLedgerEntry),
		records:      make(map[string]entity.SessionRecord),
		progress:     make(map[[2]uint]entity.ChallengeProgress),
	}
}

func (db *fakeProgressDB) GetProfile(ctx context.Context, playerID uint) (*entity.PlayerProfile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.profiles[playerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (db *fakeProgressDB) ListAchievements(ctx context.Context, playerID uint) ([]entity.PlayerAchievement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]entity.PlayerAchievement(nil), db.achievements[playerID]...), nil
}

func (db *fakeProgressDB) GetLedgerEntry(ctx context.Context, sessionID string) (*entity.RewardLedgerEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.ledger[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &e, nil
}

func (db *fakeProgressDB) ApplyCommit(ctx context.Context, commit *entity.ProgressionCommit) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.ledger[commit.Ledger.SessionID]; ok {
		db.duplicateAttempts++
		return repository.ErrDuplicateApplication
	}
	if db.injectConflicts > 0 {
		db.injectConflicts--
		return repository.ErrVersionConflict
	}
	current, exists := db.profiles[commit.Profile.PlayerID]
	if commit.IsNewProfile && exists {
		return repository.ErrVersionConflict
	}
	if !commit.IsNewProfile && (!exists || current.Version != commit.ExpectedVersion) {
		return repository.ErrVersionConflict
	}

	db.ledger[commit.Ledger.SessionID] = commit.Ledger
	profile := commit.Profile
	profile.Version = commit.ExpectedVersion + 1
	db.profiles[profile.PlayerID] = profile
	db.achievements[profile.PlayerID] = append(db.achievements[profile.PlayerID], commit.Achievements...)
	for _, p := range commit.ChallengeProgress {
		db.progress[[2]uint{p.ChallengeID, p.PlayerID}] = p
	}
	if commit.Archive != nil {
		db.records[commit.Archive.ID] = *commit.Archive
	}
	db.commits++
	return nil
}

func (db *fakeProgressDB) TopByXP(ctx context.Context, limit int) ([]entity.PlayerProfile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]entity.PlayerProfile, 0, len(db.profiles))
	for _, p := range db.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].XP > out[j].XP })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *fakeProgressDB) GetSessionRecord(ctx context.Context, sessionID string) (*entity.SessionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.records[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &r, nil
}

func (db *fakeProgressDB) Create(ctx context.Context, challenge *entity.Challenge) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	challenge.ID = uint(len(db.challenges) + 1)
	db.challenges = append(db.challenges, *challenge)
	return nil
}

func (db *fakeProgressDB) ListActive(ctx context.Context, at time.Time) ([]entity.Challenge, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entity.Challenge
	for _, ch := range db.challenges {
		if ch.IsActiveAt(at) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (db *fakeProgressDB) ListProgress(ctx context.Context, playerID uint, challengeIDs []uint) ([]entity.ChallengeProgress, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entity.ChallengeProgress
	for _, id := range challengeIDs {
		if p, ok := db.progress[[2]uint{id, playerID}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (db *fakeProgressDB) stats() (commits, duplicates, ledger int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits, db.duplicateAttempts, len(db.ledger)
}

// ============================================================================
// Тестовое окружение
// ============================================================================

// testClock — управляемые часы
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	mr          *miniredis.Miniredis
	client      goredis.UniversalClient
	questions   *fakeQuestionRepo
	db          *fakeProgressDB
	clock       *testClock
	engineCfg   *engine.Config
	challenges  *ChallengeService
	progression *ProgressionService
	sessions    *SessionService
}

var (
	testSessionSettings     = config.SessionSettings{TTLMin: 60, LockTTLSec: 5, LockWaitMs: 3000}
	testProgressionSettings = config.ProgressionSettings{MaxAttempts: 3, BackoffMs: 1, LockTTLSec: 5, LockWaitMs: 3000, ResultCacheMin: 60}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		mr:        mr,
		client:    client,
		questions: newFakeQuestionRepo(),
		db:        newFakeProgressDB(),
		clock:     &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		engineCfg: engine.DefaultConfig(),
	}
	env.rebuild(t)
	return env
}

// rebuild пересоздаёт сервисы поверх тех же хранилищ (имитация второго экземпляра API)
func (env *testEnv) rebuild(t *testing.T) {
	t.Helper()
	env.challenges, env.progression, env.sessions = env.newServices(t)
}

func (env *testEnv) newServices(t *testing.T) (*ChallengeService, *ProgressionService, *SessionService) {
	t.Helper()
	cacheRepo, err := redisrepo.NewCacheRepo(env.client)
	require.NoError(t, err)
	locker := redisrepo.NewLocker(env.client)
	store := redisrepo.NewSessionStore(env.client)

	challenges := NewChallengeService(env.db)
	progression := NewProgressionService(env.db, cacheRepo, locker, challenges, env.engineCfg, testProgressionSettings)
	progression.now = env.clock.Now
	sessions := NewSessionService(env.questions, store, locker, progression, env.engineCfg, testSessionSettings)
	sessions.now = env.clock.Now
	return challenges, progression, sessions
}

// startSession начинает сессию и проверяет отсутствие ошибки
func (env *testEnv) startSession(t *testing.T, playerID uint, tier entity.Tier) *StartSessionResult {
	t.Helper()
	result, err := env.sessions.StartSession(context.Background(), StartSessionInput{PlayerID: playerID, Tier: tier, Seed: 7})
	require.NoError(t, err)
	return result
}

// answerAll отвечает на все вопросы: первые correct правильно, остальные неправильно
func (env *testEnv) answerAll(t *testing.T, sessions *SessionService, playerID uint, started *StartSessionResult, correct int) {
	t.Helper()
	for i, q := range started.Questions {
		option := env.questions.correctOption(q.ID)
		if i >= correct {
			option = (option + 1) % 4
		}
		env.clock.Advance(2 * time.Second)
		_, err := sessions.SubmitAnswer(context.Background(), playerID, started.Session.ID, i, option)
		require.NoError(t, err)
	}
}
