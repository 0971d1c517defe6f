package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

type ErrorResponse struct {
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error"`
}

type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// MessageResponse возвращается операциями без данных.
type MessageResponse struct {
	Message string `json:"message"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// Error отвечает по коду AppError; прочие ошибки маскируются как внутренние.
// Ошибка также регистрируется в gin.Context для ErrorHandler.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		abort(c, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Fields)
		return
	}
	abort(c, http.StatusInternalServerError, apperror.ErrCodeInternal, "внутренняя ошибка сервера", nil)
}

func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, apperror.ErrCodeBadRequest, message, nil)
}

func Validation(c *gin.Context, fields map[string]string) {
	Error(c, apperror.Validation(fields))
}

func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, apperror.ErrCodeUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, apperror.ErrCodeForbidden, message, nil)
}

func TooManyRequests(c *gin.Context, message string) {
	abort(c, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
}

func abort(c *gin.Context, status int, code apperror.ErrorCode, message string, fields map[string]string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    string(code),
			Message: message,
			Fields:  fields,
		},
	})
}
