package engine

import (
	"fmt"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// AnswerOutcome — результат перехода по вопросу (ответ или истечение времени)
type AnswerOutcome struct {
	QuestionIndex     int  `json:"question_index"`
	Correct           bool `json:"correct"`
	TimedOut          bool `json:"timed_out"`
	Finished          bool `json:"finished"`
	NextQuestionIndex *int `json:"next_question_index,omitempty"`
}

// StartSession создаёт сессию и сразу активирует её: таймер первого вопроса стартует в now
func StartSession(
	id string,
	playerID uint,
	tier entity.Tier,
	questionIDs []uint,
	timePerQuestionSec int,
	now time.Time,
) (*entity.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	if len(questionIDs) == 0 {
		return nil, fmt.Errorf("%w: session needs at least one question", apperrors.ErrValidation)
	}
	if timePerQuestionSec <= 0 {
		return nil, fmt.Errorf("%w: time per question must be positive", apperrors.ErrValidation)
	}

	session := &entity.Session{
		ID:                 id,
		PlayerID:           playerID,
		Tier:               tier,
		RequestedTier:      tier,
		QuestionIDs:        append([]uint(nil), questionIDs...),
		TimePerQuestionSec: timePerQuestionSec,
		Answers:            make([]entity.AnswerRecord, 0, len(questionIDs)),
		CorrectIDs:         []uint{},
		Status:             entity.SessionStatusCreated,
	}

	activate(session, now)
	return session, nil
}

func activate(s *entity.Session, now time.Time) {
	s.StartedAt = now
	s.CurrentIndex = 0
	s.CurrentQuestionStartedAt = now
	s.Status = entity.SessionStatusActive
}

// SubmitAnswer записывает ответ на текущий вопрос.
// Ответ после дедлайна записывается как истечение времени (TimedOut), а не как ошибка:
// следующий вопрос стартует в дедлайн просроченного, а не в now.
// При любой ошибке состояние сессии не меняется.
func SubmitAnswer(
	s *entity.Session,
	questionIndex int,
	selectedOption int,
	key entity.AnswerKey,
	now time.Time,
) (*AnswerOutcome, error) {
	if err := CheckTransition(s, questionIndex); err != nil {
		return nil, err
	}
	if key.QuestionID != s.QuestionIDs[questionIndex] {
		return nil, fmt.Errorf("%w: answer key for question %d does not match session question %d",
			apperrors.ErrValidation, key.QuestionID, s.QuestionIDs[questionIndex])
	}
	if selectedOption < 0 || selectedOption >= key.OptionCount {
		return nil, fmt.Errorf("%w: option %d out of range [0,%d)", apperrors.ErrValidation, selectedOption, key.OptionCount)
	}

	elapsed := elapsedSeconds(s, now)
	if s.TimePerQuestionSec-elapsed <= 0 {
		CatchUpDeadlines(s, now)
		return outcomeFor(s, questionIndex, false, true), nil
	}

	correct := selectedOption == key.CorrectOption
	record(s, entity.AnswerRecord{
		QuestionIndex:  questionIndex,
		QuestionID:     key.QuestionID,
		SelectedOption: selectedOption,
		IsCorrect:      correct,
		Outcome:        entity.OutcomeAnswered,
		ElapsedSec:     elapsed,
		RecordedAt:     now,
	})
	advance(s, now)
	return outcomeFor(s, questionIndex, correct, false), nil
}

// ExpireCurrentQuestion записывает истечение времени на текущем вопросе.
// Вызов до дедлайна означает отказ от вопроса: он засчитывается неверным,
// а таймер следующего стартует в now. После дедлайна отсчёт идёт от дедлайна.
// Повторный вызов для того же индекса вернёт ErrQuestionAlreadyAnswered, а не сдвинет сессию ещё раз.
func ExpireCurrentQuestion(s *entity.Session, questionIndex int, now time.Time) (*AnswerOutcome, error) {
	if err := CheckTransition(s, questionIndex); err != nil {
		return nil, err
	}

	if !now.Before(s.CurrentDeadline()) {
		CatchUpDeadlines(s, now)
		return outcomeFor(s, questionIndex, false, true), nil
	}

	record(s, entity.AnswerRecord{
		QuestionIndex:  questionIndex,
		QuestionID:     s.QuestionIDs[questionIndex],
		SelectedOption: entity.NoSelection,
		Outcome:        entity.OutcomeTimedOut,
		ElapsedSec:     elapsedSeconds(s, now),
		RecordedAt:     now,
	})
	advance(s, now)
	return outcomeFor(s, questionIndex, false, true), nil
}

// CatchUpDeadlines истекает все вопросы, чей бюджет времени полностью прошёл к моменту now.
// Таймер следующего вопроса стартует в дедлайн предыдущего. Возвращает число истёкших вопросов.
func CatchUpDeadlines(s *entity.Session, now time.Time) int {
	expired := 0
	for s.IsActive() {
		deadline := s.CurrentDeadline()
		if now.Before(deadline) {
			break
		}
		record(s, entity.AnswerRecord{
			QuestionIndex:  s.CurrentIndex,
			QuestionID:     s.QuestionIDs[s.CurrentIndex],
			SelectedOption: entity.NoSelection,
			Outcome:        entity.OutcomeTimedOut,
			ElapsedSec:     s.TimePerQuestionSec,
			RecordedAt:     deadline,
		})
		advance(s, deadline)
		expired++
	}
	return expired
}

// CatchUpForIndex применяет дедлайны перед записью по вопросу questionIndex.
// Если этот вопрос закрылся по времени в ходе догона, возвращает его исход (TimedOut),
// иначе nil, и запись проверяется обычным порядком.
func CatchUpForIndex(s *entity.Session, questionIndex int, now time.Time) *AnswerOutcome {
	from := s.CurrentIndex
	if CatchUpDeadlines(s, now) == 0 {
		return nil
	}
	if questionIndex >= from && questionIndex < s.CurrentIndex {
		return outcomeFor(s, questionIndex, false, true)
	}
	return nil
}

// RemainingSeconds возвращает оставшиеся целые секунды на текущий вопрос (0, если сессия не активна)
func RemainingSeconds(s *entity.Session, now time.Time) int {
	if !s.IsActive() {
		return 0
	}
	remaining := s.TimePerQuestionSec - elapsedSeconds(s, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckTransition проверяет, можно ли сейчас закрыть вопрос questionIndex
func CheckTransition(s *entity.Session, questionIndex int) error {
	if s == nil || !s.IsActive() {
		return ErrSessionNotActive
	}
	if questionIndex < 0 || questionIndex >= s.TotalQuestions() {
		return fmt.Errorf("%w: question index %d out of range [0,%d)", apperrors.ErrValidation, questionIndex, s.TotalQuestions())
	}
	if questionIndex < s.CurrentIndex {
		return fmt.Errorf("%w (index %d, current %d)", ErrQuestionAlreadyAnswered, questionIndex, s.CurrentIndex)
	}
	if questionIndex > s.CurrentIndex {
		return fmt.Errorf("%w (index %d, current %d)", ErrOutOfOrder, questionIndex, s.CurrentIndex)
	}
	return nil
}

// elapsedSeconds — целые секунды с начала текущего вопроса (с округлением вниз)
func elapsedSeconds(s *entity.Session, now time.Time) int {
	d := now.Sub(s.CurrentQuestionStartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

func record(s *entity.Session, rec entity.AnswerRecord) {
	s.Answers = append(s.Answers, rec)
	if rec.IsCorrect {
		s.CorrectIDs = append(s.CorrectIDs, rec.QuestionID)
		s.Score++
	}
}

func advance(s *entity.Session, at time.Time) {
	s.CurrentIndex++
	if s.CurrentIndex >= s.TotalQuestions() {
		finishedAt := at
		s.Status = entity.SessionStatusFinished
		s.FinishedAt = &finishedAt
		return
	}
	s.CurrentQuestionStartedAt = at
}

func outcomeFor(s *entity.Session, questionIndex int, correct, timedOut bool) *AnswerOutcome {
	outcome := &AnswerOutcome{
		QuestionIndex: questionIndex,
		Correct:       correct,
		TimedOut:      timedOut,
		Finished:      s.IsFinished(),
	}
	if !outcome.Finished {
		next := s.CurrentIndex
		outcome.NextQuestionIndex = &next
	}
	return outcome
}
