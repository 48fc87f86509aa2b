package entity

import (
	"time"
)

// PlayerProfile хранит прогресс игрока: уровень, опыт, очки, серии.
// Version используется для оптимистичной блокировки при начислении наград.
type PlayerProfile struct {
	PlayerID        uint       `gorm:"primaryKey;autoIncrement:false" json:"player_id"`
	Level           int        `gorm:"not null;default:1" json:"level"`
	XP              int64      `gorm:"not null;default:0;index" json:"xp"`
	Points          int64      `gorm:"not null;default:0" json:"points"`
	Title           string     `gorm:"size:100;not null;default:''" json:"title"`
	SessionsPlayed  int        `gorm:"not null;default:0" json:"sessions_played"`
	SessionsWon     int        `gorm:"not null;default:0" json:"sessions_won"`
	PerfectSessions int        `gorm:"not null;default:0" json:"perfect_sessions"`
	DailyStreak     int        `gorm:"not null;default:0" json:"daily_streak"`
	LastPlayedDate  *time.Time `gorm:"type:date" json:"last_played_date,omitempty"`
	WinStreak       int        `gorm:"not null;default:0" json:"win_streak"`
	BestWinStreak   int        `gorm:"not null;default:0" json:"best_win_streak"`
	Version         int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (PlayerProfile) TableName() string {
	return "player_profiles"
}

// NewPlayerProfile возвращает профиль нового игрока (уровень 1, без прогресса)
func NewPlayerProfile(playerID uint) *PlayerProfile {
	return &PlayerProfile{
		PlayerID: playerID,
		Level:    1,
	}
}

// AchievementCode — идентификатор достижения
type AchievementCode string

const (
	AchievementFirstWin     AchievementCode = "first_win"
	AchievementPerfectScore AchievementCode = "perfect_score"
	AchievementStreak3      AchievementCode = "streak_3"
	AchievementStreak7      AchievementCode = "streak_7"
	AchievementWinStreak5   AchievementCode = "win_streak_5"
	AchievementSessions10   AchievementCode = "sessions_10"
	AchievementSessions50   AchievementCode = "sessions_50"
	AchievementLevel5       AchievementCode = "level_5"
	AchievementExpertWin    AchievementCode = "expert_win"
)

// PlayerAchievement — разблокированное достижение. Пара (player_id, code) уникальна.
type PlayerAchievement struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	PlayerID   uint            `gorm:"not null;uniqueIndex:idx_player_achievement,priority:1" json:"player_id"`
	Code       AchievementCode `gorm:"size:50;not null;uniqueIndex:idx_player_achievement,priority:2" json:"code"`
	SessionID  string          `gorm:"size:64;not null" json:"session_id"`
	UnlockedAt time.Time       `gorm:"not null" json:"unlocked_at"`
}

// TableName определяет имя таблицы для GORM
func (PlayerAchievement) TableName() string {
	return "player_achievements"
}
