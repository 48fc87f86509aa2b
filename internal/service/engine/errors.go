package engine

import (
	"fmt"

	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// Ошибки движка оборачивают общие ошибки приложения, чтобы обработчики
// могли сопоставить их с HTTP-статусами через errors.Is.
var (
	ErrSessionNotActive        = fmt.Errorf("session is not active: %w", apperrors.ErrConflict)
	ErrOutOfOrder              = fmt.Errorf("question index is ahead of the current question: %w", apperrors.ErrConflict)
	ErrQuestionAlreadyAnswered = fmt.Errorf("question already answered: %w", apperrors.ErrConflict)
	ErrSessionStillActive      = fmt.Errorf("session is still active: %w", apperrors.ErrConflict)
	ErrSessionBusy             = fmt.Errorf("session is busy, retry later: %w", apperrors.ErrConflict)
	ErrPoolExhausted           = fmt.Errorf("not enough questions for tier: %w", apperrors.ErrNotFound)
	ErrInvalidTier             = fmt.Errorf("invalid tier: %w", apperrors.ErrValidation)
)
