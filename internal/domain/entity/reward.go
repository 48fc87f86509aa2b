package entity

import (
	"time"
)

// RewardBundle — начисление за сессию. Значение, а не сущность: в БД отдельно не хранится.
type RewardBundle struct {
	Points              int64   `json:"points"`
	XP                  int64   `json:"xp"`
	StreakBonusFraction float64 `json:"streak_bonus_fraction"`
}

// RewardBreakdown раскладывает итоговое начисление по источникам
type RewardBreakdown struct {
	BasePoints          int64   `json:"base_points"`
	BaseXP              int64   `json:"base_xp"`
	StreakBonusFraction float64 `json:"streak_bonus_fraction"`
	StreakBonusPoints   int64   `json:"streak_bonus_points"`
	StreakBonusXP       int64   `json:"streak_bonus_xp"`
	AchievementPoints   int64   `json:"achievement_points"`
	AchievementXP       int64   `json:"achievement_xp"`
	ChallengePoints     int64   `json:"challenge_points"`
	ChallengeXP         int64   `json:"challenge_xp"`
	TotalPoints         int64   `json:"total_points"`
	TotalXP             int64   `json:"total_xp"`
}

// ProgressionSummary — состояние прогресса игрока после начисления
type ProgressionSummary struct {
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	LevelsGained  int    `json:"levels_gained"`
	NewTitle      string `json:"new_title,omitempty"`
	Title         string `json:"title"`
	TotalXP       int64  `json:"total_xp"`
	TotalPoints   int64  `json:"total_points"`
	XPToNextLevel int64  `json:"xp_to_next_level"`
	DailyStreak   int    `json:"daily_streak"`
	WinStreak     int    `json:"win_streak"`
}

// UnlockedAchievement — достижение, открытое этой сессией, вместе с его наградой
type UnlockedAchievement struct {
	Code   AchievementCode `json:"code"`
	Title  string          `json:"title"`
	Points int64           `json:"points"`
	XP     int64           `json:"xp"`
}

// CompletedChallenge — челлендж, завершённый этой сессией
type CompletedChallenge struct {
	ChallengeID uint   `json:"challenge_id"`
	Title       string `json:"title"`
	Points      int64  `json:"points"`
	XP          int64  `json:"xp"`
}

// CompletionResult — полный результат завершения сессии.
// Сериализованная копия хранится в RewardLedgerEntry и отдаётся при повторных запросах без изменений.
type CompletionResult struct {
	SessionID           string                `json:"session_id"`
	PlayerID            uint                  `json:"player_id"`
	Tier                Tier                  `json:"tier"`
	CorrectCount        int                   `json:"correct_count"`
	Total               int                   `json:"total"`
	Accuracy            int                   `json:"accuracy"`
	IsWin               bool                  `json:"is_win"`
	IsPerfect           bool                  `json:"is_perfect"`
	PoolExhausted       bool                  `json:"pool_exhausted"`
	Rewards             RewardBreakdown       `json:"rewards"`
	Progression         ProgressionSummary    `json:"progression"`
	Achievements        []UnlockedAchievement `json:"achievements"`
	CompletedChallenges []CompletedChallenge  `json:"completed_challenges"`
}

// RewardLedgerEntry — запись о применённой награде. session_id уникален:
// повторная вставка означает, что награда за сессию уже начислена.
type RewardLedgerEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	PlayerID  uint      `gorm:"not null;index" json:"player_id"`
	Points    int64     `gorm:"not null" json:"points"`
	XP        int64     `gorm:"not null" json:"xp"`
	Result    []byte    `gorm:"type:jsonb;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (RewardLedgerEntry) TableName() string {
	return "reward_ledger"
}

// ProgressionCommit — всё, что пишется одной транзакцией при начислении награды
type ProgressionCommit struct {
	Ledger            RewardLedgerEntry
	Profile           PlayerProfile
	ExpectedVersion   int64
	IsNewProfile      bool
	Achievements      []PlayerAchievement
	ChallengeProgress []ChallengeProgress
	Archive           *SessionRecord
}
