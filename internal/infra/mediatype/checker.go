package mediatype

import (
	"fmt"
	"os"
	"strings"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the largest upload accepted.
const DefaultMaxBytes int64 = 100 << 20

// Checker sniffs uploads and rejects anything that isn't a video.
type Checker struct {
	maxBytes int64
}

func NewChecker(maxBytes int64) *Checker {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Checker{maxBytes: maxBytes}
}

func (c *Checker) MaxBytes() int64 {
	return c.maxBytes
}

// CheckFile returns the detected MIME type of path, or an ErrUnsupportedInput error.
func (c *Checker) CheckFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}
	if info.Size() == 0 {
		return "", entity.NewAnalysisError(entity.ErrUnsupportedInput, "check upload", fmt.Errorf("empty file"))
	}
	if info.Size() > c.maxBytes {
		return "", entity.NewAnalysisError(entity.ErrUnsupportedInput, "check upload",
			fmt.Errorf("file is %d bytes, limit is %d", info.Size(), c.maxBytes))
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect mime type: %w", err)
	}
	if !IsVideo(mt.String()) {
		return "", entity.NewAnalysisError(entity.ErrUnsupportedInput, "check upload",
			fmt.Errorf("detected %s", mt.String()))
	}
	return mt.String(), nil
}

// IsVideo reports whether a declared or detected MIME type is a video type.
func IsVideo(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}
