package engine

import (
	"math"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// ProgressionInput — всё, что нужно для расчёта начисления по одной сессии
type ProgressionInput struct {
	Profile    entity.PlayerProfile
	Unlocked   map[entity.AchievementCode]bool
	SessionID  string
	Tier       entity.Tier
	Outcome    Outcome
	PlayedAt   time.Time
	Challenges []entity.CompletedChallenge
}

// ProgressionResult — новый профиль и раскладка начисления. Ничего не записывает.
type ProgressionResult struct {
	Profile         entity.PlayerProfile
	Rewards         entity.RewardBreakdown
	Progression     entity.ProgressionSummary
	Achievements    []entity.UnlockedAchievement
	NewAchievements []entity.PlayerAchievement
}

// ApplyProgression обновляет серии, начисляет базовую награду с бонусом серии,
// награды челленджей и новых достижений, затем пересчитывает уровень.
func (c *Config) ApplyProgression(in ProgressionInput) ProgressionResult {
	p := in.Profile
	if p.Level <= 0 {
		p.Level = c.LevelForXP(p.XP)
	}
	prevLevel := p.Level
	prevTitle := p.Title

	// Серии и счётчики сессий
	today := dateOnly(in.PlayedAt)
	p.DailyStreak = NextDailyStreak(p.DailyStreak, p.LastPlayedDate, in.PlayedAt)
	p.LastPlayedDate = &today
	if in.Outcome.IsWin {
		p.WinStreak++
		if p.WinStreak > p.BestWinStreak {
			p.BestWinStreak = p.WinStreak
		}
		p.SessionsWon++
	} else {
		p.WinStreak = 0
	}
	if in.Outcome.IsPerfect {
		p.PerfectSessions++
	}
	p.SessionsPlayed++

	// Базовая награда и бонус серии
	fraction := c.StreakBonusFraction(p.DailyStreak, p.WinStreak)
	rewards := entity.RewardBreakdown{
		BasePoints:          in.Outcome.Reward.Points,
		BaseXP:              in.Outcome.Reward.XP,
		StreakBonusFraction: fraction,
		StreakBonusPoints:   int64(math.Round(float64(in.Outcome.Reward.Points) * fraction)),
		StreakBonusXP:       int64(math.Round(float64(in.Outcome.Reward.XP) * fraction)),
	}
	for _, ch := range in.Challenges {
		rewards.ChallengePoints += ch.Points
		rewards.ChallengeXP += ch.XP
	}
	p.Points += rewards.BasePoints + rewards.StreakBonusPoints + rewards.ChallengePoints
	p.XP += rewards.BaseXP + rewards.StreakBonusXP + rewards.ChallengeXP

	// Достижения проверяются на статистике после начисления. Награда достижения
	// может поднять уровень и открыть следующее достижение, поэтому цикл до неподвижной точки.
	unlocked := make(map[entity.AchievementCode]bool, len(in.Unlocked))
	for code, ok := range in.Unlocked {
		unlocked[code] = ok
	}
	var achievements []entity.UnlockedAchievement
	var newRows []entity.PlayerAchievement
	for {
		p.Level = c.LevelForXP(p.XP)
		earned := c.earnedAchievements(&p, in, unlocked)
		if len(earned) == 0 {
			break
		}
		for _, rule := range earned {
			unlocked[rule.Code] = true
			rewards.AchievementPoints += rule.Points
			rewards.AchievementXP += rule.XP
			p.Points += rule.Points
			p.XP += rule.XP
			achievements = append(achievements, entity.UnlockedAchievement{
				Code:   rule.Code,
				Title:  rule.Title,
				Points: rule.Points,
				XP:     rule.XP,
			})
			newRows = append(newRows, entity.PlayerAchievement{
				PlayerID:   p.PlayerID,
				Code:       rule.Code,
				SessionID:  in.SessionID,
				UnlockedAt: in.PlayedAt,
			})
		}
	}

	p.Level = c.LevelForXP(p.XP)
	p.Title = c.TitleForLevel(p.Level)

	rewards.TotalPoints = rewards.BasePoints + rewards.StreakBonusPoints + rewards.AchievementPoints + rewards.ChallengePoints
	rewards.TotalXP = rewards.BaseXP + rewards.StreakBonusXP + rewards.AchievementXP + rewards.ChallengeXP

	summary := entity.ProgressionSummary{
		PreviousLevel: prevLevel,
		NewLevel:      p.Level,
		LevelsGained:  p.Level - prevLevel,
		Title:         p.Title,
		TotalXP:       p.XP,
		TotalPoints:   p.Points,
		XPToNextLevel: c.XPToNextLevel(p.XP),
		DailyStreak:   p.DailyStreak,
		WinStreak:     p.WinStreak,
	}
	if summary.LevelsGained > 0 && p.Title != prevTitle {
		summary.NewTitle = p.Title
	}

	if achievements == nil {
		achievements = []entity.UnlockedAchievement{}
	}
	return ProgressionResult{
		Profile:         p,
		Rewards:         rewards,
		Progression:     summary,
		Achievements:    achievements,
		NewAchievements: newRows,
	}
}

// earnedAchievements возвращает ещё не открытые достижения, условия которых выполнены
func (c *Config) earnedAchievements(p *entity.PlayerProfile, in ProgressionInput, unlocked map[entity.AchievementCode]bool) []AchievementRule {
	var earned []AchievementRule
	for _, rule := range c.Achievements {
		if unlocked[rule.Code] {
			continue
		}
		if achievementSatisfied(rule.Code, p, in) {
			earned = append(earned, rule)
		}
	}
	return earned
}

func achievementSatisfied(code entity.AchievementCode, p *entity.PlayerProfile, in ProgressionInput) bool {
	switch code {
	case entity.AchievementFirstWin:
		return p.SessionsWon >= 1
	case entity.AchievementPerfectScore:
		return p.PerfectSessions >= 1
	case entity.AchievementStreak3:
		return p.DailyStreak >= 3
	case entity.AchievementStreak7:
		return p.DailyStreak >= 7
	case entity.AchievementWinStreak5:
		return p.WinStreak >= 5
	case entity.AchievementSessions10:
		return p.SessionsPlayed >= 10
	case entity.AchievementSessions50:
		return p.SessionsPlayed >= 50
	case entity.AchievementLevel5:
		return p.Level >= 5
	case entity.AchievementExpertWin:
		return in.Outcome.IsWin && in.Tier == entity.TierExpert
	}
	return false
}

// NextDailyStreak считает дневную серию по датам UTC. Игра на следующий день
// продлевает серию, после пропуска она начинается с 1.
func NextDailyStreak(current int, lastPlayed *time.Time, now time.Time) int {
	if lastPlayed == nil || current <= 0 {
		return 1
	}
	days := int(dateOnly(now).Sub(dateOnly(*lastPlayed)).Hours() / 24)
	switch {
	case days <= 0:
		return current
	case days == 1:
		return current + 1
	default:
		return 1
	}
}

// StreakBonusFraction — max(бонус дневной серии, бонус серии побед), не больше MaxStreakBonus
func (c *Config) StreakBonusFraction(dailyStreak, winStreak int) float64 {
	bonus := math.Max(bonusFor(c.DailyStreakBonuses, dailyStreak), bonusFor(c.WinStreakBonuses, winStreak))
	if bonus > c.MaxStreakBonus {
		bonus = c.MaxStreakBonus
	}
	return bonus
}

// bonusFor возвращает бонус старшей достигнутой ступени; таблица отсортирована по MinStreak
func bonusFor(table []StreakBonus, streak int) float64 {
	bonus := 0.0
	for _, b := range table {
		if streak >= b.MinStreak {
			bonus = b.Bonus
		}
	}
	return bonus
}

// LevelForXP поднимается по таблице порогов, пока хватает опыта.
// Одно крупное начисление может перейти несколько порогов сразу.
func (c *Config) LevelForXP(xp int64) int {
	idx := 0
	for idx+1 < len(c.Levels) && xp >= c.Levels[idx+1].XP {
		idx++
	}
	return c.Levels[idx].Level
}

// TitleForLevel возвращает титул старшего достигнутого уровня, у которого он задан
func (c *Config) TitleForLevel(level int) string {
	title := ""
	for _, l := range c.Levels {
		if l.Level > level {
			break
		}
		if l.Title != "" {
			title = l.Title
		}
	}
	return title
}

// XPToNextLevel возвращает недостающий опыт до следующего уровня (0 на максимальном)
func (c *Config) XPToNextLevel(xp int64) int64 {
	for _, l := range c.Levels {
		if l.XP > xp {
			return l.XP - xp
		}
	}
	return 0
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
