package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// QuestionSource — часть репозитория вопросов, нужная селектору
type QuestionSource interface {
	ListIDsByTier(ctx context.Context, tier entity.Tier, excludeIDs []uint) ([]uint, error)
	ListPublicByIDs(ctx context.Context, ids []uint) ([]entity.PublicQuestion, error)
}

// SelectionResult — результат выборки вопросов.
// Exhausted означает, что подходящих вопросов меньше запрошенного количества.
type SelectionResult struct {
	Questions []entity.PublicQuestion
	Exhausted bool
	PoolSize  int
}

// PoolSelector выбирает случайный неповторяющийся набор вопросов уровня
type PoolSelector struct {
	source         QuestionSource
	maxExcludedIDs int
}

// NewPoolSelector создаёт новый селектор
func NewPoolSelector(source QuestionSource, maxExcludedIDs int) *PoolSelector {
	return &PoolSelector{
		source:         source,
		maxExcludedIDs: maxExcludedIDs,
	}
}

// SelectQuestions выбирает до count вопросов уровня tier, не входящих в excludedIDs.
// seed = 0 означает случайное зерно от текущего времени. Пул не изменяется.
func (s *PoolSelector) SelectQuestions(
	ctx context.Context,
	tier entity.Tier,
	count int,
	excludedIDs []uint,
	seed int64,
) (*SelectionResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive, got %d", apperrors.ErrValidation, count)
	}
	if !tier.IsValid() {
		return nil, fmt.Errorf("%w: unknown tier %d", ErrInvalidTier, int(tier))
	}

	excluded := CapExcludedIDs(excludedIDs, s.maxExcludedIDs)

	eligible, err := s.source.ListIDsByTier(ctx, tier, excluded)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions for tier %s: %w", tier, err)
	}
	eligible = withoutExcluded(dedupeIDs(eligible), excluded)

	take := count
	if len(eligible) < take {
		take = len(eligible)
	}

	result := &SelectionResult{
		Exhausted: len(eligible) < count,
		PoolSize:  len(eligible),
	}
	if take == 0 {
		result.Questions = []entity.PublicQuestion{}
		return result, nil
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	drawn := drawIDs(rng, eligible, take)

	questions, err := s.source.ListPublicByIDs(ctx, drawn)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	result.Questions = orderByIDs(questions, drawn)

	if len(result.Questions) < take {
		// Вопрос могли деактивировать между выборкой ID и загрузкой
		log.Printf("[PoolSelector] Tier %s: загружено %d вопросов из %d выбранных", tier, len(result.Questions), take)
		result.Exhausted = result.Exhausted || len(result.Questions) < count
	}

	return result, nil
}

// CapExcludedIDs ограничивает список исключений последними max элементами
func CapExcludedIDs(ids []uint, max int) []uint {
	if max <= 0 || len(ids) <= max {
		return ids
	}
	return ids[len(ids)-max:]
}

// drawIDs выбирает k случайных элементов частичной перетасовкой Фишера-Йетса
func drawIDs(rng *rand.Rand, ids []uint, k int) []uint {
	pool := append([]uint(nil), ids...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func withoutExcluded(ids, excluded []uint) []uint {
	if len(excluded) == 0 {
		return ids
	}
	skip := make(map[uint]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func orderByIDs(questions []entity.PublicQuestion, ids []uint) []entity.PublicQuestion {
	byID := make(map[uint]entity.PublicQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]entity.PublicQuestion, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered
}
