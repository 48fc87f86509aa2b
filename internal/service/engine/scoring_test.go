package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// finishedSession строит завершённую сессию с заданным числом правильных ответов
func finishedSession(tier entity.Tier, total, correct int) *entity.Session {
	s := &entity.Session{
		ID:     "sess-score",
		Tier:   tier,
		Status: entity.SessionStatusFinished,
	}
	for i := 0; i < total; i++ {
		id := uint(i + 1)
		s.QuestionIDs = append(s.QuestionIDs, id)
		isCorrect := i < correct
		s.Answers = append(s.Answers, entity.AnswerRecord{
			QuestionIndex: i,
			QuestionID:    id,
			IsCorrect:     isCorrect,
			Outcome:       entity.OutcomeAnswered,
		})
		if isCorrect {
			s.CorrectIDs = append(s.CorrectIDs, id)
			s.Score++
		}
	}
	s.CurrentIndex = total
	return s
}

func TestComputeOutcome_MediumFiveOfEight(t *testing.T) {
	// Сценарий: medium, 8 вопросов, 5 правильных, множитель 1.5, база 10 очков
	cfg := DefaultConfig()

	outcome, err := cfg.ComputeOutcome(finishedSession(entity.TierMedium, 8, 5))

	require.NoError(t, err)
	assert.Equal(t, 5, outcome.CorrectCount)
	assert.Equal(t, 8, outcome.Total)
	assert.Equal(t, 63, outcome.Accuracy, "62.5 округляется до 63")
	assert.True(t, outcome.IsWin)
	assert.False(t, outcome.IsPerfect)
	assert.Equal(t, int64(75), outcome.Reward.Points)
	assert.Equal(t, int64(30), outcome.Reward.XP)
}

func TestComputeOutcome_WinThresholdBoundary(t *testing.T) {
	cfg := DefaultConfig()

	testCases := []struct {
		name    string
		tier    entity.Tier
		total   int
		correct int
		isWin   bool
	}{
		{"easy ровно на пороге", entity.TierEasy, 5, 3, true},
		{"easy на один меньше", entity.TierEasy, 5, 2, false},
		{"hard укороченная сессия 3 из 3", entity.TierHard, 3, 3, true},
		{"hard укороченная сессия 2 из 3", entity.TierHard, 3, 2, false},
		{"expert все правильные", entity.TierExpert, 12, 12, true},
		{"expert 9 из 12", entity.TierExpert, 12, 9, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := cfg.ComputeOutcome(finishedSession(tc.tier, tc.total, tc.correct))

			require.NoError(t, err)
			assert.Equal(t, tc.isWin, outcome.IsWin)
		})
	}
}

func TestComputeOutcome_Perfect(t *testing.T) {
	outcome, err := DefaultConfig().ComputeOutcome(finishedSession(entity.TierExpert, 12, 12))

	require.NoError(t, err)
	assert.True(t, outcome.IsPerfect)
	assert.Equal(t, 100, outcome.Accuracy)
	assert.Equal(t, int64(360), outcome.Reward.Points)
	assert.Equal(t, int64(144), outcome.Reward.XP)
}

func TestComputeOutcome_ZeroQuestions(t *testing.T) {
	outcome := ComputeOutcome(&entity.Session{}, DefaultConfig().Tiers[entity.TierEasy], 10, 4)

	assert.Equal(t, Outcome{}, outcome)
}

func TestComputeOutcome_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	s := finishedSession(entity.TierHard, 10, 7)

	first, err := cfg.ComputeOutcome(s)
	require.NoError(t, err)
	second, err := cfg.ComputeOutcome(s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeOutcome_UnknownTier(t *testing.T) {
	_, err := DefaultConfig().ComputeOutcome(finishedSession(entity.Tier(0), 3, 1))

	assert.True(t, errors.Is(err, ErrInvalidTier))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestWinThreshold(t *testing.T) {
	hard := TierConfig{Tier: entity.TierHard, QuestionCount: 10, MinCorrectToWin: 7}

	assert.Equal(t, 7, WinThreshold(hard, 10))
	assert.Equal(t, 7, WinThreshold(hard, 12))
	assert.Equal(t, 3, WinThreshold(hard, 3), "ceil(7*3/10)")
	assert.Equal(t, 1, WinThreshold(hard, 1))
	assert.Equal(t, 5, WinThreshold(TierConfig{QuestionCount: 12, MinCorrectToWin: 10}, 6))
}
