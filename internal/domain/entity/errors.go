package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableMedia means the video never became ready: no duration, no decodable stream.
	ErrUnreadableMedia = errors.New("unreadable media")
	// ErrUnsupportedInput means the payload is not a video we accept.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrRendering means a frame could not be rasterized for detection.
	ErrRendering = errors.New("internal rendering failure")
	// ErrTimeout means a seek did not produce a frame within the bounded wait.
	ErrTimeout = errors.New("timed out waiting for frame")
	// ErrSuperseded means a newer upload for the same key, or an explicit discard,
	// stopped the analysis.
	ErrSuperseded = errors.New("analysis superseded")
)

// AnalysisError carries the failed operation alongside one of the sentinel kinds.
type AnalysisError struct {
	Kind error
	Op   string
	Err  error
}

func NewAnalysisError(kind error, op string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Op: op, Err: err}
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsPermanent reports whether retrying the same input can't help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnreadableMedia) ||
		errors.Is(err, ErrUnsupportedInput) ||
		errors.Is(err, ErrRendering) ||
		errors.Is(err, ErrTimeout)
}

// UserMessage maps an analysis failure to text safe to show an end user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedInput):
		return "Please upload a video file (MP4, MOV or AVI, max 100MB)."
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnreadableMedia):
		return "The video could not be read. Try re-uploading it or use a different file."
	case errors.Is(err, ErrRendering):
		return "Something went wrong while analyzing the video. Please try again."
	default:
		return "Video analysis failed. Please try again."
	}
}
