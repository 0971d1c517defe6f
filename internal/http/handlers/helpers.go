package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/http/middleware"
	"github.com/ignatzorin/autoclaim-backend/internal/http/response"
	"github.com/ignatzorin/autoclaim-backend/internal/usecase/claim"
)

// currentViewer возвращает пользователя запроса; при отсутствии отвечает 401.
func currentViewer(c *gin.Context) (claim.Viewer, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return claim.Viewer{}, false
	}
	return claim.Viewer{ID: userID, IsAdmin: middleware.CurrentRole(c) == entity.RoleAdmin}, true
}

// uuidParam разбирает параметр пути; при ошибке отвечает 400.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Validation(c, map[string]string{name: "параметр должен быть валидным UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
