package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/microlearn-api/internal/middleware"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
)

// handleAppError сопоставляет ошибки сервисов с HTTP-статусами
func handleAppError(c *gin.Context, component string, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("[%s] Internal server error: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// playerID достаёт ID игрока, выставленный RequireAuth
func playerID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// requirePlayer отвечает 401, если игрок не определён
func requirePlayer(c *gin.Context) (uint, bool) {
	id, ok := playerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}
