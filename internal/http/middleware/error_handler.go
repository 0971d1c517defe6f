package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/http/response"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

// ErrorHandler логирует ошибки запроса и отвечает за обработчики, которые
// зарегистрировали ошибку через c.Error, но не записали ответ.
func ErrorHandler(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		entry := log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": c.Writer.Status(),
		})

		var appErr *apperror.AppError
		switch {
		case errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError:
			entry.Debug("request error")
		default:
			entry.Error("request error")
		}

		if !c.Writer.Written() {
			response.Error(c, err)
		}
	}
}
