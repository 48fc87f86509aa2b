package repository

import (
	"errors"
	"fmt"

	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

var (
	// ErrDuplicateApplication означает, что награда за сессию уже записана в журнал (unique session_id).
	ErrDuplicateApplication = fmt.Errorf("reward already applied for session: %w", apperrors.ErrConflict)
	// ErrVersionConflict означает, что профиль игрока изменился между чтением и записью.
	ErrVersionConflict = errors.New("player profile version conflict")
	// ErrSessionExists означает, что сессия с таким ID уже создана.
	ErrSessionExists = fmt.Errorf("session already exists: %w", apperrors.ErrConflict)
)
