package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/handler/dto"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
	"github.com/yourusername/microlearn-api/internal/service"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

// SessionIDKey — ключ контекста, под который ExtractUUIDParam кладёт ID сессии
const SessionIDKey = "sessionID"

// SessionService — операции над сессиями, нужные обработчику
type SessionService interface {
	StartSession(ctx context.Context, input service.StartSessionInput) (*service.StartSessionResult, error)
	GetSession(ctx context.Context, playerID uint, sessionID string) (*service.SessionState, error)
	SubmitAnswer(ctx context.Context, playerID uint, sessionID string, questionIndex, selectedOption int) (*engine.AnswerOutcome, error)
	ExpireQuestion(ctx context.Context, playerID uint, sessionID string, questionIndex int) (*engine.AnswerOutcome, error)
	CompleteSession(ctx context.Context, playerID uint, sessionID string) (*entity.CompletionResult, error)
	Tiers() []engine.TierConfig
}

// SessionHandler обрабатывает запросы прохождения сессий
type SessionHandler struct {
	sessionService SessionService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(sessionService SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartSession начинает новую сессию
// POST /api/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	playerID, ok := requirePlayer(c)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tier, err := entity.ParseTier(req.Tier)
	if err != nil {
		handleAppError(c, "SessionHandler", fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	result, err := h.sessionService.StartSession(c.Request.Context(), service.StartSessionInput{
		PlayerID:    playerID,
		Tier:        tier,
		ExcludedIDs: req.ExcludedIDs,
		Seed:        seed,
		SessionID:   req.SessionID,
	})
	if err != nil {
		handleAppError(c, "SessionHandler", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewStartSessionResponse(result.Session, result.Questions))
}

// GetSession возвращает состояние сессии и текущий вопрос
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	playerID, ok := requirePlayer(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetSession(c.Request.Context(), playerID, c.GetString(SessionIDKey))
	if err != nil {
		handleAppError(c, "SessionHandler", err)
		return
	}

	resp := dto.NewSessionResponse(state.Session, state.RemainingSeconds)
	if state.CurrentQuestion != nil {
		q := dto.NewQuestionResponse(*state.CurrentQuestion)
		resp.CurrentQuestion = &q
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitAnswer принимает ответ на текущий вопрос
// POST /api/sessions/:id/answers
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	playerID, ok := requirePlayer(c)
	if !ok {
		return
	}

	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.sessionService.SubmitAnswer(c.Request.Context(), playerID, c.GetString(SessionIDKey),
		*req.QuestionIndex, *req.SelectedOption)
	if err != nil {
		handleAppError(c, "SessionHandler", err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ExpireQuestion фиксирует истечение таймера текущего вопроса
// POST /api/sessions/:id/expire
func (h *SessionHandler) ExpireQuestion(c *gin.Context) {
	playerID, ok := requirePlayer(c)
	if !ok {
		return
	}

	var req dto.ExpireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.sessionService.ExpireQuestion(c.Request.Context(), playerID, c.GetString(SessionIDKey), *req.QuestionIndex)
	if err != nil {
		handleAppError(c, "SessionHandler", err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// CompleteSession завершает сессию и начисляет награду. Повторный вызов вернёт тот же результат.
// POST /api/sessions/:id/complete
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	playerID, ok := requirePlayer(c)
	if !ok {
		return
	}

	result, err := h.sessionService.CompleteSession(c.Request.Context(), playerID, c.GetString(SessionIDKey))
	if err != nil {
		handleAppError(c, "SessionHandler", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListTiers возвращает параметры уровней сложности
// GET /api/tiers
func (h *SessionHandler) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": dto.NewTierResponses(h.sessionService.Tiers())})
}
