package entity

import (
	"fmt"
	"time"
)

// ChallengeKind определяет, что считается прогрессом челленджа
type ChallengeKind string

const (
	ChallengeKindWins     ChallengeKind = "wins"     // победы
	ChallengeKindSessions ChallengeKind = "sessions" // сыгранные сессии
	ChallengeKindPerfect  ChallengeKind = "perfect"  // сессии без ошибок
	ChallengeKindPoints   ChallengeKind = "points"   // набранные базовые очки
)

// IsValid проверяет, что тип челленджа известен
func (k ChallengeKind) IsValid() bool {
	switch k {
	case ChallengeKindWins, ChallengeKindSessions, ChallengeKindPerfect, ChallengeKindPoints:
		return true
	}
	return false
}

// Challenge — ограниченная по времени цель со своей наградой
type Challenge struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Title        string        `gorm:"size:200;not null" json:"title"`
	Kind         ChallengeKind `gorm:"size:20;not null" json:"kind"`
	Tier         *Tier         `json:"tier,omitempty"` // nil — любой уровень
	Target       int64         `gorm:"not null" json:"target"`
	RewardPoints int64         `gorm:"not null;default:0" json:"reward_points"`
	RewardXP     int64         `gorm:"not null;default:0" json:"reward_xp"`
	StartsAt     time.Time     `gorm:"not null;index" json:"starts_at"`
	EndsAt       time.Time     `gorm:"not null;index" json:"ends_at"`
	CreatedAt    time.Time     `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Challenge) TableName() string {
	return "challenges"
}

// IsActiveAt проверяет, идёт ли челлендж в момент t
func (c *Challenge) IsActiveAt(t time.Time) bool {
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

// Matches проверяет, относится ли сессия указанного уровня к челленджу
func (c *Challenge) Matches(tier Tier) bool {
	return c.Tier == nil || *c.Tier == tier
}

// Validate проверяет параметры челленджа
func (c *Challenge) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("challenge title is required")
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("unknown challenge kind %q", c.Kind)
	}
	if c.Tier != nil && !c.Tier.IsValid() {
		return fmt.Errorf("invalid challenge tier %d", int(*c.Tier))
	}
	if c.Target <= 0 {
		return fmt.Errorf("challenge target must be positive")
	}
	if c.RewardPoints < 0 || c.RewardXP < 0 {
		return fmt.Errorf("challenge reward must not be negative")
	}
	if !c.EndsAt.After(c.StartsAt) {
		return fmt.Errorf("challenge must end after it starts")
	}
	return nil
}

// ChallengeProgress — прогресс игрока по челленджу. Пара (challenge_id, player_id) уникальна.
type ChallengeProgress struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	ChallengeID uint       `gorm:"not null;uniqueIndex:idx_challenge_player,priority:1" json:"challenge_id"`
	PlayerID    uint       `gorm:"not null;uniqueIndex:idx_challenge_player,priority:2" json:"player_id"`
	Progress    int64      `gorm:"not null;default:0" json:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ChallengeProgress) TableName() string {
	return "challenge_progress"
}

// IsCompleted проверяет, завершён ли челлендж
func (p *ChallengeProgress) IsCompleted() bool {
	return p.CompletedAt != nil
}
