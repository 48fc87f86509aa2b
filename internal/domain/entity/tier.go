package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Tier — уровень сложности (ordinal: easy < medium < hard < expert)
type Tier int

const (
	TierEasy Tier = iota + 1
	TierMedium
	TierHard
	TierExpert
)

// AllTiers возвращает все уровни в порядке возрастания сложности
func AllTiers() []Tier {
	return []Tier{TierEasy, TierMedium, TierHard, TierExpert}
}

var tierNames = map[Tier]string{
	TierEasy:   "easy",
	TierMedium: "medium",
	TierHard:   "hard",
	TierExpert: "expert",
}

// String возвращает строковое имя уровня
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// IsValid проверяет, что уровень известен
func (t Tier) IsValid() bool {
	_, ok := tierNames[t]
	return ok
}

// Lower возвращает более лёгкий уровень и false, если ниже некуда
func (t Tier) Lower() (Tier, bool) {
	if t <= TierEasy || !t.IsValid() {
		return t, false
	}
	return t - 1, true
}

// ParseTier разбирает имя уровня ("easy", "MEDIUM", ...)
func ParseTier(s string) (Tier, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == needle {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// MarshalText реализует encoding.TextMarshaler (в JSON уровень пишется именем)
func (t Tier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value реализует driver.Valuer: в БД уровень хранится числом
func (t Tier) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan реализует sql.Scanner
func (t *Tier) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*t = Tier(v)
	case int32:
		*t = Tier(v)
	case nil:
		*t = 0
	default:
		return fmt.Errorf("cannot scan %T into Tier", value)
	}
	return nil
}
