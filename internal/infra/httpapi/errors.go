package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
)

// statusFor maps an analysis failure to an HTTP status and the message shown to the user.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrUnsupportedInput):
		return http.StatusUnsupportedMediaType, entity.UserMessage(err)
	case errors.Is(err, entity.ErrUnreadableMedia), errors.Is(err, entity.ErrTimeout):
		return http.StatusUnprocessableEntity, entity.UserMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusUnprocessableEntity, entity.UserMessage(entity.ErrTimeout)
	case errors.Is(err, entity.ErrSuperseded):
		return http.StatusConflict, "The analysis was replaced by a newer upload."
	case errors.Is(err, context.Canceled):
		return http.StatusConflict, "The analysis was cancelled."
	case errors.Is(err, entity.ErrRendering):
		return http.StatusInternalServerError, entity.UserMessage(err)
	default:
		return http.StatusInternalServerError, entity.UserMessage(err)
	}
}
