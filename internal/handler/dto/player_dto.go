package dto

import (
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// LeaderboardEntryDTO представляет одного игрока в лидерборде
type LeaderboardEntryDTO struct {
	Rank     int    `json:"rank"`      // Место игрока в рейтинге
	PlayerID uint   `json:"player_id"` // ID игрока
	Level    int    `json:"level"`
	Title    string `json:"title"`
	XP       int64  `json:"xp"`
	Points   int64  `json:"points"`
}

// LeaderboardResponse — ответ лидерборда
type LeaderboardResponse struct {
	Players []LeaderboardEntryDTO `json:"players"`
	Limit   int                   `json:"limit"`
}

// CreateChallengeRequest — запрос на создание челленджа
type CreateChallengeRequest struct {
	Title        string    `json:"title" binding:"required,min=3,max=200"`
	Kind         string    `json:"kind" binding:"required"`
	Tier         string    `json:"tier"` // Пусто — любой уровень
	Target       int64     `json:"target" binding:"required"`
	RewardPoints int64     `json:"reward_points"`
	RewardXP     int64     `json:"reward_xp"`
	StartsAt     time.Time `json:"starts_at" binding:"required"`
	EndsAt       time.Time `json:"ends_at" binding:"required"`
}

// NewLeaderboardResponse нумерует игроков по порядку выдачи
func NewLeaderboardResponse(profiles []entity.PlayerProfile, limit int) *LeaderboardResponse {
	players := make([]LeaderboardEntryDTO, 0, len(profiles))
	for i, p := range profiles {
		players = append(players, LeaderboardEntryDTO{
			Rank:     i + 1,
			PlayerID: p.PlayerID,
			Level:    p.Level,
			Title:    p.Title,
			XP:       p.XP,
			Points:   p.Points,
		})
	}
	return &LeaderboardResponse{Players: players, Limit: limit}
}
