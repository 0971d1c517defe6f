package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/http/response"
)

// UUIDValidator проверяет, что параметры пути являются валидными UUID.
// Использование: claims.GET("/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			if _, err := uuid.Parse(c.Param(name)); err != nil {
				response.Validation(c, map[string]string{name: "параметр должен быть валидным UUID"})
				return
			}
		}
		c.Next()
	}
}
