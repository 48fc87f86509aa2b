package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/handler/dto"
	"github.com/yourusername/microlearn-api/internal/service"
)

// ProgressionReader — чтение прогресса игроков
type ProgressionReader interface {
	GetProgression(ctx context.Context, playerID uint) (*service.PlayerProgression, error)
	Leaderboard(ctx context.Context, limit int) ([]entity.PlayerProfile, error)
}

// PlayerHandler обрабатывает запросы, связанные с прогрессом игроков
type PlayerHandler struct {
	progression ProgressionReader
}

// NewPlayerHandler создает новый обработчик игроков
func NewPlayerHandler(progression ProgressionReader) *PlayerHandler {
	return &PlayerHandler{progression: progression}
}

// GetMyProgression возвращает уровень, опыт, серии, достижения и челленджи игрока
// GET /api/players/me/progression
func (h *PlayerHandler) GetMyProgression(c *gin.Context) {
	playerID, ok := requirePlayer(c)
	if !ok {
		return
	}

	progression, err := h.progression.GetProgression(c.Request.Context(), playerID)
	if err != nil {
		handleAppError(c, "PlayerHandler", err)
		return
	}

	c.JSON(http.StatusOK, progression)
}

// GetLeaderboard обрабатывает запрос на получение лидерборда
// GET /api/leaderboard?limit=10
func (h *PlayerHandler) GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10 // Значение по умолчанию
	} else if limit > 100 {
		limit = 100 // Максимальный лимит
	}

	profiles, err := h.progression.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		handleAppError(c, "PlayerHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewLeaderboardResponse(profiles, limit))
}
