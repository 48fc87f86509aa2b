package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

// finishedSession строит завершённую сессию и её итог без прохождения через Redis
func finishedSession(t *testing.T, env *testEnv, id string, playerID uint, tier entity.Tier, total, correct int) (*entity.Session, engine.Outcome) {
	t.Helper()
	ids := make([]uint, total)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	finishedAt := env.clock.Now()
	session := &entity.Session{
		ID:          id,
		PlayerID:    playerID,
		Tier:        tier,
		QuestionIDs: ids,
		CorrectIDs:  append([]uint(nil), ids[:correct]...),
		Status:      entity.SessionStatusFinished,
		StartedAt:   finishedAt.Add(-time.Minute),
		FinishedAt:  &finishedAt,
	}
	for i := 0; i < total; i++ {
		session.Answers = append(session.Answers, entity.AnswerRecord{QuestionIndex: i, QuestionID: ids[i], IsCorrect: i < correct})
	}
	outcome, err := env.engineCfg.ComputeOutcome(session)
	require.NoError(t, err)
	return session, outcome
}

// ============================================================================
// ApplyReward
// ============================================================================

func TestApplyReward_RetriesOnVersionConflict(t *testing.T) {
	// Arrange: первая попытка проигрывает гонку за версию профиля
	env := newTestEnv(t)
	env.db.injectConflicts = 1
	session, outcome := finishedSession(t, env, "s-1", testPlayer, entity.TierMedium, 8, 5)

	// Act
	result, err := env.progression.ApplyReward(context.Background(), session, outcome)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(75), result.Rewards.BasePoints)
	commits, _, _ := env.db.stats()
	assert.Equal(t, 1, commits)
}

func TestApplyReward_GivesUpAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.db.injectConflicts = 10
	session, outcome := finishedSession(t, env, "s-1", testPlayer, entity.TierEasy, 5, 3)

	_, err := env.progression.ApplyReward(context.Background(), session, outcome)

	assert.ErrorIs(t, err, engine.ErrSessionBusy)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, _, ledger := env.db.stats()
	assert.Equal(t, 0, ledger)
}

func TestApplyReward_SecondCallReadsCache(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	session, outcome := finishedSession(t, env, "s-1", testPlayer, entity.TierEasy, 5, 5)
	first, err := env.progression.ApplyReward(context.Background(), session, outcome)
	require.NoError(t, err)

	// Act: другой итог той же сессии не должен ничего поменять
	outcome.Reward.Points = 1000
	second, err := env.progression.ApplyReward(context.Background(), session, outcome)

	// Assert
	require.NoError(t, err)
	assertSameResult(t, first, second)
	commits, duplicates, _ := env.db.stats()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, duplicates)
}

func TestApplyReward_DuplicateFromLedger(t *testing.T) {
	// Arrange: награду записал другой экземпляр, кеша нет
	env := newTestEnv(t)
	session, outcome := finishedSession(t, env, "s-1", testPlayer, entity.TierEasy, 5, 4)
	first, err := env.progression.ApplyReward(context.Background(), session, outcome)
	require.NoError(t, err)
	env.mr.FlushAll()

	// Act
	second, err := env.progression.ApplyReward(context.Background(), session, outcome)

	// Assert
	require.NoError(t, err)
	assertSameResult(t, first, second)
	commits, _, ledger := env.db.stats()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1, ledger)
}

func TestApplyReward_ProgressionAcrossSessions(t *testing.T) {
	// Arrange: два дня подряд, вторая сессия продолжает серию
	env := newTestEnv(t)
	s1, o1 := finishedSession(t, env, "s-1", testPlayer, entity.TierMedium, 8, 8)
	r1, err := env.progression.ApplyReward(context.Background(), s1, o1)
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	s2, o2 := finishedSession(t, env, "s-2", testPlayer, entity.TierMedium, 8, 2)

	// Act
	r2, err := env.progression.ApplyReward(context.Background(), s2, o2)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Progression.DailyStreak)
	assert.Equal(t, 1, r1.Progression.WinStreak)
	assert.Equal(t, 2, r2.Progression.DailyStreak)
	assert.Equal(t, 0, r2.Progression.WinStreak)
	assert.Empty(t, r2.Achievements)

	profile, err := env.db.GetProfile(context.Background(), testPlayer)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.SessionsPlayed)
	assert.Equal(t, 1, profile.SessionsWon)
	assert.Equal(t, r1.Rewards.TotalPoints+r2.Rewards.TotalPoints, profile.Points)
	assert.Equal(t, int64(2), profile.Version)

	achievements, err := env.db.ListAchievements(context.Background(), testPlayer)
	require.NoError(t, err)
	assert.Len(t, achievements, len(r1.Achievements))
}

func TestApplyReward_CompletesChallenge(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	now := env.clock.Now()
	challenge, err := env.challenges.CreateChallenge(context.Background(), CreateChallengeInput{
		Title:        "Две победы",
		Kind:         entity.ChallengeKindWins,
		Target:       2,
		RewardPoints: 100,
		RewardXP:     50,
		StartsAt:     now.Add(-time.Hour),
		EndsAt:       now.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	s1, o1 := finishedSession(t, env, "s-1", testPlayer, entity.TierEasy, 5, 5)
	s2, o2 := finishedSession(t, env, "s-2", testPlayer, entity.TierEasy, 5, 4)
	s3, o3 := finishedSession(t, env, "s-3", testPlayer, entity.TierEasy, 5, 5)

	// Act
	r1, err := env.progression.ApplyReward(context.Background(), s1, o1)
	require.NoError(t, err)
	r2, err := env.progression.ApplyReward(context.Background(), s2, o2)
	require.NoError(t, err)
	r3, err := env.progression.ApplyReward(context.Background(), s3, o3)
	require.NoError(t, err)

	// Assert
	assert.Empty(t, r1.CompletedChallenges)
	require.Len(t, r2.CompletedChallenges, 1)
	assert.Equal(t, challenge.ID, r2.CompletedChallenges[0].ChallengeID)
	assert.Equal(t, int64(100), r2.Rewards.ChallengePoints)
	assert.Equal(t, int64(50), r2.Rewards.ChallengeXP)
	assert.Empty(t, r3.CompletedChallenges, "завершённый челлендж не засчитывается повторно")

	progression, err := env.progression.GetProgression(context.Background(), testPlayer)
	require.NoError(t, err)
	require.Len(t, progression.Challenges, 1)
	assert.True(t, progression.Challenges[0].Completed)
	assert.Equal(t, int64(2), progression.Challenges[0].Progress)
}

// ============================================================================
// GetProgression / Leaderboard
// ============================================================================

func TestGetProgression_NewPlayer(t *testing.T) {
	env := newTestEnv(t)

	progression, err := env.progression.GetProgression(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, uint(7), progression.Profile.PlayerID)
	assert.Equal(t, 1, progression.Profile.Level)
	assert.Equal(t, "Новичок", progression.Profile.Title)
	assert.Equal(t, int64(100), progression.XPToNextLevel)
	assert.NotNil(t, progression.Achievements)
	assert.Empty(t, progression.Challenges)
}

func TestGetCompletionResult_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.progression.GetCompletionResult(context.Background(), "unknown")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLeaderboard(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	for i, correct := range []int{1, 5, 3} {
		s, o := finishedSession(t, env, "s-"+string(rune('a'+i)), uint(i+1), entity.TierEasy, 5, correct)
		_, err := env.progression.ApplyReward(context.Background(), s, o)
		require.NoError(t, err)
	}

	// Act
	top, err := env.progression.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	all, err := env.progression.Leaderboard(context.Background(), 0)
	require.NoError(t, err)

	// Assert
	require.Len(t, top, 2)
	assert.Equal(t, uint(2), top[0].PlayerID)
	assert.GreaterOrEqual(t, top[0].XP, top[1].XP)
	assert.Len(t, all, 3)
}

func TestLeaderboard_CachedUntilNextReward(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	s, o := finishedSession(t, env, "lb-1", 1, entity.TierEasy, 5, 3)
	_, err := env.progression.ApplyReward(ctx, s, o)
	require.NoError(t, err)

	first, err := env.progression.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, env.mr.Exists(leaderboardCacheKey))

	// Act
	s, o = finishedSession(t, env, "lb-2", 2, entity.TierEasy, 5, 5)
	_, err = env.progression.ApplyReward(ctx, s, o)
	require.NoError(t, err)

	// Assert: начисление сбросило кеш, новый лидер виден сразу
	assert.False(t, env.mr.Exists(leaderboardCacheKey))
	second, err := env.progression.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, uint(2), second[0].PlayerID)
}
