package engine

import (
	"math"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// Outcome — итог завершённой сессии и её базовая награда
type Outcome struct {
	CorrectCount int                 `json:"correct_count"`
	Total        int                 `json:"total"`
	Accuracy     int                 `json:"accuracy"`
	IsWin        bool                `json:"is_win"`
	IsPerfect    bool                `json:"is_perfect"`
	Reward       entity.RewardBundle `json:"reward"`
}

// ComputeOutcome считает результат сессии по политике её уровня. Чистая функция.
func (c *Config) ComputeOutcome(s *entity.Session) (Outcome, error) {
	tc, err := c.TierConfig(s.Tier)
	if err != nil {
		return Outcome{}, err
	}
	return ComputeOutcome(s, tc, c.BasePointsPerQuestion, c.XPPerQuestion), nil
}

// ComputeOutcome считает точность, победу и награду.
// Для укороченной сессии (пул исчерпан) порог победы масштабируется пропорционально.
func ComputeOutcome(s *entity.Session, tc TierConfig, basePointsPerQuestion, xpPerQuestion int) Outcome {
	correct := s.CorrectCount()
	total := s.TotalQuestions()

	out := Outcome{
		CorrectCount: correct,
		Total:        total,
	}
	if total == 0 {
		return out
	}

	out.Accuracy = int(math.Round(float64(correct) * 100 / float64(total)))
	out.IsWin = correct >= WinThreshold(tc, total)
	out.IsPerfect = correct == total
	out.Reward = entity.RewardBundle{
		Points: int64(math.Round(float64(correct) * float64(basePointsPerQuestion) * tc.Multiplier)),
		XP:     int64(math.Round(float64(correct) * float64(xpPerQuestion) * tc.Multiplier)),
	}
	return out
}

// WinThreshold возвращает минимум правильных ответов для победы при total вопросах
func WinThreshold(tc TierConfig, total int) int {
	if total >= tc.QuestionCount || tc.QuestionCount == 0 {
		return tc.MinCorrectToWin
	}
	// ceil(minCorrect * total / questionCount)
	threshold := (tc.MinCorrectToWin*total + tc.QuestionCount - 1) / tc.QuestionCount
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}
