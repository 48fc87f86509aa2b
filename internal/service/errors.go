package service

import (
	"fmt"

	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// Ошибки сервисов оборачивают общие ошибки приложения
var (
	// ErrNotSessionOwner — сессия принадлежит другому игроку
	ErrNotSessionOwner = fmt.Errorf("session belongs to another player: %w", apperrors.ErrForbidden)
	// ErrInvalidChallenge — параметры челленджа некорректны
	ErrInvalidChallenge = fmt.Errorf("invalid challenge: %w", apperrors.ErrValidation)
)
