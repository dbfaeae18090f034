package port

import (
	"context"
	"image"
	"time"
)

// Video is an opened, seekable video resource. It is not safe for concurrent
// use: seeks move a single playback position.
type Video interface {
	Duration() time.Duration
	// Seek blocks until the frame at t is decoded or ctx is done. A nil image
	// with a nil error means the position could not be reached (end of stream).
	// Once ctx is done Seek must return promptly; callers stop waiting at that
	// point and a Seek that ignores ctx leaks its goroutine.
	Seek(ctx context.Context, t time.Duration) (image.Image, error)
	// Close may be called while a Seek whose ctx is already done is still
	// returning, so implementations must tolerate that overlap.
	Close() error
}

type VideoSource interface {
	Open(ctx context.Context, videoPath string) (Video, error)
}
