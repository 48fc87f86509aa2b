package engine

import (
	"fmt"
	"sort"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// StarvedTierPolicy определяет поведение при нехватке вопросов уровня
type StarvedTierPolicy string

const (
	// StarvedTierServe — выдать всё, что есть; отказ только при пустом уровне
	StarvedTierServe StarvedTierPolicy = "serve"
	// StarvedTierDowngrade — перейти на более лёгкий уровень
	StarvedTierDowngrade StarvedTierPolicy = "downgrade"
	// StarvedTierBlock — отказать в старте
	StarvedTierBlock StarvedTierPolicy = "block"
)

// TierConfig — параметры одного уровня сложности
type TierConfig struct {
	Tier               entity.Tier
	QuestionCount      int
	TimePerQuestionSec int
	MinCorrectToWin    int
	Multiplier         float64
}

// LevelThreshold — минимальный опыт для уровня игрока и (необязательный) титул
type LevelThreshold struct {
	Level int
	XP    int64
	Title string
}

// StreakBonus — бонус к базовой награде за серию не короче MinStreak
type StreakBonus struct {
	MinStreak int
	Bonus     float64
}

// AchievementRule — награда за достижение
type AchievementRule struct {
	Code   entity.AchievementCode
	Title  string
	Points int64
	XP     int64
}

// Config содержит политику движка: уровни сложности, начисления, уровни игрока, серии, достижения
type Config struct {
	Tiers                 map[entity.Tier]TierConfig
	BasePointsPerQuestion int
	XPPerQuestion         int
	OptionArity           int
	MaxExcludedIDs        int
	StarvedTierPolicy     StarvedTierPolicy
	MinQuestionsToStart   int

	Levels             []LevelThreshold
	DailyStreakBonuses []StreakBonus
	WinStreakBonuses   []StreakBonus
	MaxStreakBonus     float64
	Achievements       []AchievementRule
}

// DefaultConfig возвращает политику по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Tiers: map[entity.Tier]TierConfig{
			entity.TierEasy:   {Tier: entity.TierEasy, QuestionCount: 5, TimePerQuestionSec: 30, MinCorrectToWin: 3, Multiplier: 1.0},
			entity.TierMedium: {Tier: entity.TierMedium, QuestionCount: 8, TimePerQuestionSec: 25, MinCorrectToWin: 5, Multiplier: 1.5},
			entity.TierHard:   {Tier: entity.TierHard, QuestionCount: 10, TimePerQuestionSec: 20, MinCorrectToWin: 7, Multiplier: 2.0},
			entity.TierExpert: {Tier: entity.TierExpert, QuestionCount: 12, TimePerQuestionSec: 15, MinCorrectToWin: 10, Multiplier: 3.0},
		},
		BasePointsPerQuestion: 10,
		XPPerQuestion:         4,
		OptionArity:           4,
		MaxExcludedIDs:        200,
		StarvedTierPolicy:     StarvedTierServe,
		MinQuestionsToStart:   3,
		Levels: []LevelThreshold{
			{Level: 1, XP: 0, Title: "Новичок"},
			{Level: 2, XP: 100},
			{Level: 3, XP: 250, Title: "Ученик"},
			{Level: 4, XP: 450},
			{Level: 5, XP: 700, Title: "Знаток"},
			{Level: 6, XP: 1000},
			{Level: 7, XP: 1400},
			{Level: 8, XP: 1900, Title: "Эксперт"},
			{Level: 9, XP: 2500},
			{Level: 10, XP: 3200, Title: "Мастер"},
		},
		DailyStreakBonuses: []StreakBonus{
			{MinStreak: 3, Bonus: 0.10},
			{MinStreak: 7, Bonus: 0.25},
			{MinStreak: 14, Bonus: 0.50},
		},
		WinStreakBonuses: []StreakBonus{
			{MinStreak: 3, Bonus: 0.10},
			{MinStreak: 5, Bonus: 0.20},
		},
		MaxStreakBonus: 0.5,
		Achievements: []AchievementRule{
			{Code: entity.AchievementFirstWin, Title: "Первая победа", Points: 20, XP: 10},
			{Code: entity.AchievementPerfectScore, Title: "Без ошибок", Points: 30, XP: 15},
			{Code: entity.AchievementStreak3, Title: "Три дня подряд", Points: 15, XP: 10},
			{Code: entity.AchievementStreak7, Title: "Неделя без пропусков", Points: 40, XP: 25},
			{Code: entity.AchievementWinStreak5, Title: "Пять побед подряд", Points: 50, XP: 30},
			{Code: entity.AchievementSessions10, Title: "10 сессий", Points: 25, XP: 15},
			{Code: entity.AchievementSessions50, Title: "50 сессий", Points: 100, XP: 60},
			{Code: entity.AchievementLevel5, Title: "Пятый уровень", Points: 50, XP: 0},
			{Code: entity.AchievementExpertWin, Title: "Победа на expert", Points: 75, XP: 40},
		},
	}
}

// NewConfig строит политику из настроек приложения поверх значений по умолчанию
func NewConfig(settings config.EngineConfig) (*Config, error) {
	cfg := DefaultConfig()

	if settings.BasePointsPerQuestion > 0 {
		cfg.BasePointsPerQuestion = settings.BasePointsPerQuestion
	}
	if settings.XPPerQuestion > 0 {
		cfg.XPPerQuestion = settings.XPPerQuestion
	}
	if settings.OptionArity > 0 {
		cfg.OptionArity = settings.OptionArity
	}
	if settings.MaxExcludedIDs > 0 {
		cfg.MaxExcludedIDs = settings.MaxExcludedIDs
	}
	if settings.StarvedTierPolicy != "" {
		cfg.StarvedTierPolicy = StarvedTierPolicy(settings.StarvedTierPolicy)
	}
	if settings.MinQuestionsToStart > 0 {
		cfg.MinQuestionsToStart = settings.MinQuestionsToStart
	}
	if settings.MaxStreakBonus > 0 {
		cfg.MaxStreakBonus = settings.MaxStreakBonus
	}

	for _, ts := range settings.Tiers {
		tier, err := entity.ParseTier(ts.Name)
		if err != nil {
			return nil, fmt.Errorf("engine tiers: %w", err)
		}
		tc := cfg.Tiers[tier]
		if ts.QuestionCount > 0 {
			tc.QuestionCount = ts.QuestionCount
		}
		if ts.TimePerQuestionSec > 0 {
			tc.TimePerQuestionSec = ts.TimePerQuestionSec
		}
		if ts.MinCorrectToWin > 0 {
			tc.MinCorrectToWin = ts.MinCorrectToWin
		}
		if ts.Multiplier > 0 {
			tc.Multiplier = ts.Multiplier
		}
		cfg.Tiers[tier] = tc
	}

	if len(settings.Levels) > 0 {
		cfg.Levels = make([]LevelThreshold, 0, len(settings.Levels))
		for _, ls := range settings.Levels {
			cfg.Levels = append(cfg.Levels, LevelThreshold{Level: ls.Level, XP: ls.XP, Title: ls.Title})
		}
	}
	if len(settings.DailyStreakBonuses) > 0 {
		cfg.DailyStreakBonuses = convertStreakBonuses(settings.DailyStreakBonuses)
	}
	if len(settings.WinStreakBonuses) > 0 {
		cfg.WinStreakBonuses = convertStreakBonuses(settings.WinStreakBonuses)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func convertStreakBonuses(in []config.StreakBonusSettings) []StreakBonus {
	out := make([]StreakBonus, 0, len(in))
	for _, b := range in {
		out = append(out, StreakBonus{MinStreak: b.MinStreak, Bonus: b.Bonus})
	}
	return out
}

// Validate проверяет согласованность политики. Таблицы сортируются по возрастанию.
func (c *Config) Validate() error {
	var prevMultiplier float64
	for _, tier := range entity.AllTiers() {
		tc, ok := c.Tiers[tier]
		if !ok {
			return fmt.Errorf("engine config: tier %s is not configured", tier)
		}
		if tc.QuestionCount <= 0 || tc.TimePerQuestionSec <= 0 {
			return fmt.Errorf("engine config: tier %s needs positive question count and time budget", tier)
		}
		if tc.MinCorrectToWin <= 0 || tc.MinCorrectToWin > tc.QuestionCount {
			return fmt.Errorf("engine config: tier %s min correct %d must be in [1,%d]", tier, tc.MinCorrectToWin, tc.QuestionCount)
		}
		if tc.Multiplier <= 0 || tc.Multiplier < prevMultiplier {
			return fmt.Errorf("engine config: tier %s multiplier %.2f must be positive and not lower than easier tiers", tier, tc.Multiplier)
		}
		prevMultiplier = tc.Multiplier
	}

	if c.BasePointsPerQuestion < 0 || c.XPPerQuestion < 0 {
		return fmt.Errorf("engine config: rewards per question must not be negative")
	}
	if c.OptionArity < 2 {
		return fmt.Errorf("engine config: option arity must be at least 2")
	}
	if c.MaxExcludedIDs <= 0 {
		return fmt.Errorf("engine config: max excluded ids must be positive")
	}
	switch c.StarvedTierPolicy {
	case StarvedTierServe, StarvedTierDowngrade, StarvedTierBlock:
	default:
		return fmt.Errorf("engine config: unknown starved tier policy %q", c.StarvedTierPolicy)
	}
	if c.MinQuestionsToStart <= 0 {
		return fmt.Errorf("engine config: min questions to start must be positive")
	}

	if len(c.Levels) == 0 {
		return fmt.Errorf("engine config: level table is empty")
	}
	sort.Slice(c.Levels, func(i, j int) bool { return c.Levels[i].Level < c.Levels[j].Level })
	if c.Levels[0].Level != 1 || c.Levels[0].XP != 0 {
		return fmt.Errorf("engine config: level table must start with level 1 at 0 XP")
	}
	for i := 1; i < len(c.Levels); i++ {
		if c.Levels[i].Level != c.Levels[i-1].Level+1 {
			return fmt.Errorf("engine config: level %d is missing", c.Levels[i-1].Level+1)
		}
		if c.Levels[i].XP <= c.Levels[i-1].XP {
			return fmt.Errorf("engine config: level %d threshold must exceed level %d", c.Levels[i].Level, c.Levels[i-1].Level)
		}
	}

	for _, table := range [][]StreakBonus{c.DailyStreakBonuses, c.WinStreakBonuses} {
		sort.Slice(table, func(i, j int) bool { return table[i].MinStreak < table[j].MinStreak })
		for _, b := range table {
			if b.MinStreak <= 0 || b.Bonus < 0 {
				return fmt.Errorf("engine config: invalid streak bonus %+v", b)
			}
		}
	}
	if c.MaxStreakBonus < 0 {
		return fmt.Errorf("engine config: max streak bonus must not be negative")
	}
	return nil
}

// TierConfig возвращает параметры уровня сложности
func (c *Config) TierConfig(tier entity.Tier) (TierConfig, error) {
	tc, ok := c.Tiers[tier]
	if !ok {
		return TierConfig{}, fmt.Errorf("%w: unknown tier %d", ErrInvalidTier, int(tier))
	}
	return tc, nil
}

// AchievementRule возвращает правило достижения по коду
func (c *Config) AchievementRule(code entity.AchievementCode) (AchievementRule, bool) {
	for _, rule := range c.Achievements {
		if rule.Code == code {
			return rule, true
		}
	}
	return AchievementRule{}, false
}
