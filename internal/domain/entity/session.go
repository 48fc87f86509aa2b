package entity

import (
	"time"
)

// SessionStatus — состояние сессии. Переходы только вперёд: created → active → finished.
type SessionStatus string

const (
	SessionStatusCreated  SessionStatus = "created"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusFinished SessionStatus = "finished"
)

// AnswerOutcomeKind — чем закончился конкретный вопрос
type AnswerOutcomeKind string

const (
	OutcomeAnswered AnswerOutcomeKind = "answered"
	OutcomeTimedOut AnswerOutcomeKind = "timed_out"
)

// NoSelection — значение SelectedOption для вопроса, истёкшего без ответа
const NoSelection = -1

// AnswerRecord фиксирует результат одного вопроса сессии
type AnswerRecord struct {
	QuestionIndex  int               `json:"question_index"`
	QuestionID     uint              `json:"question_id"`
	SelectedOption int               `json:"selected_option"`
	IsCorrect      bool              `json:"is_correct"`
	Outcome        AnswerOutcomeKind `json:"outcome"`
	ElapsedSec     int               `json:"elapsed_sec"`
	RecordedAt     time.Time         `json:"recorded_at"`
}

// Session — одна попытка прохождения викторины.
// Живёт в Redis до завершения (и ещё TTL после), затем архивируется в SessionRecord.
type Session struct {
	ID                       string         `json:"id"`
	PlayerID                 uint           `json:"player_id"`
	Tier                     Tier           `json:"tier"`
	RequestedTier            Tier           `json:"requested_tier"`
	QuestionIDs              []uint         `json:"question_ids"`
	StartedAt                time.Time      `json:"started_at"`
	TimePerQuestionSec       int            `json:"time_per_question_sec"`
	CurrentIndex             int            `json:"current_index"`
	CurrentQuestionStartedAt time.Time      `json:"current_question_started_at"`
	Answers                  []AnswerRecord `json:"answers"`
	CorrectIDs               []uint         `json:"correct_ids"`
	Score                    int            `json:"score"`
	Status                   SessionStatus  `json:"status"`
	FinishedAt               *time.Time     `json:"finished_at,omitempty"`
	PoolExhausted            bool           `json:"pool_exhausted"`
}

// TotalQuestions возвращает количество вопросов в сессии
func (s *Session) TotalQuestions() int {
	return len(s.QuestionIDs)
}

// IsActive проверяет, принимает ли сессия ответы
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// IsFinished проверяет, завершена ли сессия
func (s *Session) IsFinished() bool {
	return s.Status == SessionStatusFinished
}

// CurrentDeadline возвращает момент, когда истекает текущий вопрос
func (s *Session) CurrentDeadline() time.Time {
	return s.CurrentQuestionStartedAt.Add(time.Duration(s.TimePerQuestionSec) * time.Second)
}

// CurrentQuestionID возвращает ID текущего вопроса и false, если вопросов больше нет
func (s *Session) CurrentQuestionID() (uint, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionIDs) {
		return 0, false
	}
	return s.QuestionIDs[s.CurrentIndex], true
}

// CorrectCount возвращает количество правильных ответов по записанным ответам
func (s *Session) CorrectCount() int {
	count := 0
	for _, a := range s.Answers {
		if a.IsCorrect {
			count++
		}
	}
	return count
}

// SessionRecord — архивная (read-only) запись завершённой сессии
type SessionRecord struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	PlayerID     uint      `gorm:"not null;index" json:"player_id"`
	Tier         Tier      `gorm:"not null" json:"tier"`
	QuestionIDs  UintArray `gorm:"type:jsonb;not null" json:"question_ids"`
	CorrectIDs   UintArray `gorm:"type:jsonb;not null" json:"correct_ids"`
	CorrectCount int       `gorm:"not null" json:"correct_count"`
	Total        int       `gorm:"not null" json:"total"`
	Accuracy     int       `gorm:"not null" json:"accuracy"`
	IsWin        bool      `gorm:"not null" json:"is_win"`
	StartedAt    time.Time `gorm:"not null" json:"started_at"`
	FinishedAt   time.Time `gorm:"not null" json:"finished_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (SessionRecord) TableName() string {
	return "session_records"
}
