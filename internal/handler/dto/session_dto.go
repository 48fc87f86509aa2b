package dto

import (
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/handler/helper"
	"github.com/yourusername/microlearn-api/internal/service/engine"
)

// StartSessionRequest — запрос на старт сессии
type StartSessionRequest struct {
	Tier        string `json:"tier" binding:"required"`
	ExcludedIDs []uint `json:"excluded_ids" binding:"omitempty,max=1000"`
	Seed        *int64 `json:"seed"` // Необязательно: одинаковый seed даёт одинаковый набор
	SessionID   string `json:"session_id" binding:"omitempty,uuid"`
}

// AnswerRequest — ответ на вопрос сессии
type AnswerRequest struct {
	QuestionIndex  *int `json:"question_index" binding:"required"`
	SelectedOption *int `json:"selected_option" binding:"required"`
}

// ExpireRequest — клиентский таймер вопроса истёк
type ExpireRequest struct {
	QuestionIndex *int `json:"question_index" binding:"required"`
}

// QuestionResponse — вопрос для клиента. Правильного ответа здесь нет.
type QuestionResponse struct {
	ID      uint                    `json:"id"`
	Text    string                  `json:"text"`
	Options []helper.QuestionOption `json:"options"`
	Tier    entity.Tier             `json:"tier"`
	Topic   string                  `json:"topic,omitempty"`
}

// SessionResponse — состояние сессии для клиента
type SessionResponse struct {
	ID                 string               `json:"id"`
	Tier               entity.Tier          `json:"tier"`
	RequestedTier      entity.Tier          `json:"requested_tier"`
	Status             entity.SessionStatus `json:"status"`
	CurrentIndex       int                  `json:"current_index"`
	TotalQuestions     int                  `json:"total_questions"`
	Score              int                  `json:"score"`
	TimePerQuestionSec int                  `json:"time_per_question_sec"`
	RemainingSeconds   int                  `json:"remaining_seconds"`
	PoolExhausted      bool                 `json:"pool_exhausted"`
	StartedAt          time.Time            `json:"started_at"`
	FinishedAt         *time.Time           `json:"finished_at,omitempty"`
	Questions          []QuestionResponse   `json:"questions,omitempty"`
	CurrentQuestion    *QuestionResponse    `json:"current_question,omitempty"`
}

// TierResponse — параметры уровня сложности
type TierResponse struct {
	Tier               entity.Tier `json:"tier"`
	QuestionCount      int         `json:"question_count"`
	TimePerQuestionSec int         `json:"time_per_question_sec"`
	MinCorrectToWin    int         `json:"min_correct_to_win"`
	Multiplier         float64     `json:"multiplier"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(q entity.PublicQuestion) QuestionResponse {
	return QuestionResponse{
		ID:      q.ID,
		Text:    q.Text,
		Options: helper.ConvertOptionsToObjects(q.Options),
		Tier:    q.Tier,
		Topic:   q.Topic,
	}
}

// NewSessionResponse создает DTO для сессии
func NewSessionResponse(s *entity.Session, remainingSeconds int) *SessionResponse {
	return &SessionResponse{
		ID:                 s.ID,
		Tier:               s.Tier,
		RequestedTier:      s.RequestedTier,
		Status:             s.Status,
		CurrentIndex:       s.CurrentIndex,
		TotalQuestions:     s.TotalQuestions(),
		Score:              s.Score,
		TimePerQuestionSec: s.TimePerQuestionSec,
		RemainingSeconds:   remainingSeconds,
		PoolExhausted:      s.PoolExhausted,
		StartedAt:          s.StartedAt,
		FinishedAt:         s.FinishedAt,
	}
}

// NewStartSessionResponse создает DTO новой сессии вместе со всеми её вопросами
func NewStartSessionResponse(s *entity.Session, questions []entity.PublicQuestion) *SessionResponse {
	resp := NewSessionResponse(s, s.TimePerQuestionSec)
	resp.Questions = make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		resp.Questions = append(resp.Questions, NewQuestionResponse(q))
	}
	return resp
}

// NewTierResponses создает DTO для списка уровней
func NewTierResponses(tiers []engine.TierConfig) []TierResponse {
	out := make([]TierResponse, 0, len(tiers))
	for _, tc := range tiers {
		out = append(out, TierResponse{
			Tier:               tc.Tier,
			QuestionCount:      tc.QuestionCount,
			TimePerQuestionSec: tc.TimePerQuestionSec,
			MinCorrectToWin:    tc.MinCorrectToWin,
			Multiplier:         tc.Multiplier,
		})
	}
	return out
}
