package usecase

import (
	"context"
	"errors"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
)

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, entity.ErrSuperseded):
		return "superseded"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, entity.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, entity.ErrUnsupportedInput):
		return "unsupported_input"
	case errors.Is(err, entity.ErrUnreadableMedia):
		return "unreadable_media"
	case errors.Is(err, entity.ErrRendering):
		return "rendering_failure"
	default:
		return "error"
	}
}
