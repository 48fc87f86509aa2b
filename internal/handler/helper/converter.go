package helper

import (
	"github.com/yourusername/microlearn-api/internal/domain/entity"
)

// QuestionOption представляет вариант ответа для фронтенда
type QuestionOption struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ConvertOptionsToObjects преобразует массив строк в массив объектов с id и text.
// ID — индекс варианта (0-based), его же клиент присылает в selected_option.
func ConvertOptionsToObjects(options entity.StringArray) []QuestionOption {
	converted := make([]QuestionOption, len(options))
	for i, opt := range options {
		if opt == "" {
			opt = "(пустой вариант)"
		}
		converted[i] = QuestionOption{ID: i, Text: opt}
	}
	return converted
}
