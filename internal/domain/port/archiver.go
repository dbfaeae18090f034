package port

import (
	"context"
	"image"
)

// FrameArchiver bundles sampled frames into a single archive file.
type FrameArchiver interface {
	ArchiveFrames(ctx context.Context, frames []image.Image, outputPath string) error
}
