package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	apperrors "easybet/internal/errors"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.AbortWithStatusJSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail writes err with the HTTP status of its error code. Errors without a
// code are logged and reported as internal.
func Fail(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}
	meta := map[string]any{"error": string(code)}
	for k, v := range apperrors.GetMetadata(err) {
		meta[k] = v
	}
	message := code.Message()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	Error(c, code.HTTPStatus(), message, meta)
}
