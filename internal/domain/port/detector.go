package port

import (
	"image"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
)

// FrameDetector counts people-like regions in a single frame.
type FrameDetector interface {
	Detect(frame image.Image) (entity.Detection, error)
}
