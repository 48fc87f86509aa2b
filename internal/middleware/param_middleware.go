package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExtractUUIDParam создает middleware для извлечения и валидации UUID-параметра URL.
// paramName - имя параметра в URL (например, "id").
// contextKey - ключ, под которым строка будет сохранена в контексте Gin.
func ExtractUUIDParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		// Нормализуем к каноническому виду: ключи Redis строятся по нему
		c.Set(contextKey, id.String())
		c.Next()
	}
}
