package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
)

// RegisterValidators adds the message type tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	if err := v.RegisterValidation("messagetype", func(fl validator.FieldLevel) bool {
		return messageTypeOf(fl.Field()).IsValid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("mediatype", func(fl validator.FieldLevel) bool {
		return messageTypeOf(fl.Field()).IsMedia()
	})
}

func messageTypeOf(field reflect.Value) models.MessageType {
	if field.Kind() != reflect.String {
		return ""
	}
	return models.MessageType(field.String())
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, message string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error(message, "path", c.FullPath(), "error", err)
	}
	c.JSON(code, models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: err.Error(),
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "Invalid request",
		Details: err.Error(),
	})
}
