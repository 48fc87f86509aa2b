package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// UintArray — список ID в JSONB
type UintArray []uint

// Scan реализует интерфейс sql.Scanner для UintArray
func (a *UintArray) Scan(value interface{}) error {
	if value == nil {
		*a = UintArray{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*a = UintArray{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Value реализует интерфейс driver.Valuer для UintArray
func (a UintArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Question представляет вопрос из пула.
// CorrectOption никогда не сериализуется: наружу уходит только PublicQuestion.
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	Tier          Tier        `gorm:"not null;index:idx_questions_tier_active,priority:1" json:"tier"`
	Topic         string      `gorm:"size:100;not null;default:'';index" json:"topic"`
	IsActive      bool        `gorm:"not null;default:true;index:idx_questions_tier_active,priority:2" json:"is_active"`
	TimesShown    int64       `gorm:"not null;default:0" json:"times_shown"`
	TimesCorrect  int64       `gorm:"not null;default:0" json:"times_correct"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOption
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// Validate проверяет инвариант: ровно один правильный индекс в пределах списка вариантов
// и фиксированное количество вариантов (если arity > 0).
func (q *Question) Validate(arity int) error {
	if arity > 0 && len(q.Options) != arity {
		return fmt.Errorf("question must have exactly %d options, got %d", arity, len(q.Options))
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question must have at least 2 options")
	}
	if !q.IsValidOption(q.CorrectOption) {
		return fmt.Errorf("correct option %d out of range [0,%d)", q.CorrectOption, len(q.Options))
	}
	if !q.Tier.IsValid() {
		return fmt.Errorf("invalid tier %d", int(q.Tier))
	}
	return nil
}

// Public возвращает публичное представление вопроса без правильного ответа
func (q *Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Options: append(StringArray(nil), q.Options...),
		Tier:    q.Tier,
		Topic:   q.Topic,
	}
}

// AccuracyRate возвращает долю правильных ответов на вопрос (0, если вопрос ещё не показывали)
func (q *Question) AccuracyRate() float64 {
	if q.TimesShown == 0 {
		return 0
	}
	return float64(q.TimesCorrect) / float64(q.TimesShown)
}

// PublicQuestion — вопрос в том виде, в котором его видит клиент.
// У структуры нет поля с правильным ответом.
type PublicQuestion struct {
	ID      uint        `gorm:"column:id" json:"id"`
	Text    string      `gorm:"column:text" json:"text"`
	Options StringArray `gorm:"column:options" json:"options"`
	Tier    Tier        `gorm:"column:tier" json:"tier"`
	Topic   string      `gorm:"column:topic" json:"topic"`
}

// AnswerKey — правильный ответ на вопрос. Возвращается только ResolveAnswers.
type AnswerKey struct {
	QuestionID    uint `gorm:"column:id"`
	CorrectOption int  `gorm:"column:correct_option"`
	OptionCount   int  `gorm:"column:option_count"`
}
