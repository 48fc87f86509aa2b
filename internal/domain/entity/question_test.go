package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuestion() *Question {
	return &Question{
		ID:            1,
		Text:          "Какой язык используется в Go?",
		Options:       StringArray{"Python", "Go", "Java", "Rust"},
		CorrectOption: 1, // "Go"
		Tier:          TierEasy,
		Topic:         "programming",
		IsActive:      true,
	}
}

func TestQuestion_IsCorrect(t *testing.T) {
	question := newTestQuestion()

	assert.True(t, question.IsCorrect(1), "IsCorrect должен вернуть true для правильного ответа")
	assert.False(t, question.IsCorrect(0))
	assert.False(t, question.IsCorrect(3))
}

func TestQuestion_IsValidOption(t *testing.T) {
	// Arrange
	question := &Question{
		Options: StringArray{"A", "B", "C", "D"},
	}

	// Act & Assert: валидные опции
	for i := 0; i < 4; i++ {
		assert.True(t, question.IsValidOption(i), "Индекс %d должен быть валидным", i)
	}

	// Assert: невалидные опции
	assert.False(t, question.IsValidOption(-1), "Отрицательный индекс должен быть невалидным")
	assert.False(t, question.IsValidOption(4), "Индекс вне диапазона должен быть невалидным")
}

func TestQuestion_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(q *Question)
		arity   int
		wantErr bool
	}{
		{"валидный вопрос", func(q *Question) {}, 4, false},
		{"arity не проверяется при 0", func(q *Question) { q.Options = StringArray{"A", "B"}; q.CorrectOption = 0 }, 0, false},
		{"неверное количество вариантов", func(q *Question) { q.Options = StringArray{"A", "B", "C"} }, 4, true},
		{"меньше двух вариантов", func(q *Question) { q.Options = StringArray{"A"}; q.CorrectOption = 0 }, 0, true},
		{"правильный индекс за пределами", func(q *Question) { q.CorrectOption = 4 }, 4, true},
		{"отрицательный правильный индекс", func(q *Question) { q.CorrectOption = -1 }, 4, true},
		{"неизвестный уровень", func(q *Question) { q.Tier = Tier(9) }, 4, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			question := newTestQuestion()
			tc.mutate(question)
			err := question.Validate(tc.arity)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuestion_JSONHidesCorrectOption(t *testing.T) {
	data, err := json.Marshal(newTestQuestion())
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, has := raw["correct_option"]
	assert.False(t, has, "correct_option не должен попадать в JSON")
	_, has = raw["CorrectOption"]
	assert.False(t, has)
}

func TestQuestion_Public(t *testing.T) {
	question := newTestQuestion()

	public := question.Public()

	assert.Equal(t, question.ID, public.ID)
	assert.Equal(t, question.Text, public.Text)
	assert.Equal(t, question.Options, public.Options)
	assert.Equal(t, TierEasy, public.Tier)

	// Копия вариантов не разделяет память с исходным вопросом
	public.Options[0] = "changed"
	assert.Equal(t, "Python", question.Options[0])

	data, err := json.Marshal(public)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "correct")
	assert.Contains(t, string(data), `"tier":"easy"`)
}

func TestQuestion_AccuracyRate(t *testing.T) {
	question := &Question{}
	assert.Equal(t, 0.0, question.AccuracyRate())

	question.TimesShown = 4
	question.TimesCorrect = 1
	assert.InDelta(t, 0.25, question.AccuracyRate(), 1e-9)
}

func TestQuestion_OptionsCount(t *testing.T) {
	testCases := []struct {
		name     string
		options  StringArray
		expected int
	}{
		{"4 варианта", StringArray{"A", "B", "C", "D"}, 4},
		{"2 варианта", StringArray{"Да", "Нет"}, 2},
		{"0 вариантов", StringArray{}, 0},
		{"nil варианты", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			question := &Question{Options: tc.options}
			assert.Equal(t, tc.expected, question.OptionsCount())
		})
	}
}

func TestQuestion_TableName(t *testing.T) {
	question := Question{}
	assert.Equal(t, "questions", question.TableName(), "TableName должен возвращать 'questions'")
}

// Тесты для StringArray и UintArray (JSONB сериализация)

func TestStringArray_Scan_ValidJSON(t *testing.T) {
	// Arrange
	jsonBytes := []byte(`["Option 1", "Option 2", "Option 3"]`)
	var arr StringArray

	// Act
	err := arr.Scan(jsonBytes)

	// Assert
	require.NoError(t, err, "Scan не должен возвращать ошибку для валидного JSON")
	assert.Equal(t, StringArray{"Option 1", "Option 2", "Option 3"}, arr)
}

func TestStringArray_Scan_NullAndEmpty(t *testing.T) {
	var arr StringArray
	require.NoError(t, arr.Scan(nil))
	assert.Len(t, arr, 0, "Для nil должен вернуться пустой массив")

	require.NoError(t, arr.Scan([]byte{}))
	assert.Len(t, arr, 0, "Для пустых байт должен вернуться пустой массив")
}

func TestStringArray_Scan_InvalidType(t *testing.T) {
	var arr StringArray

	err := arr.Scan(42)

	assert.Error(t, err, "Scan должен возвращать ошибку для неподдерживаемого типа")
}

func TestStringArray_Value(t *testing.T) {
	val, err := StringArray{"A", "B", "C"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["A","B","C"]`, string(val.([]byte)))

	var empty StringArray
	val, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(val.([]byte)), "nil должен сериализоваться в []")
}

func TestUintArray_RoundTrip(t *testing.T) {
	val, err := UintArray{3, 1, 2}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[3,1,2]", string(val.([]byte)))

	var arr UintArray
	require.NoError(t, arr.Scan(val))
	assert.Equal(t, UintArray{3, 1, 2}, arr, "порядок ID должен сохраняться")

	require.NoError(t, arr.Scan("[]"))
	assert.Len(t, arr, 0)
}
