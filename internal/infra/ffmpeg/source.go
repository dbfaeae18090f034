package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

// Source opens videos through the ffprobe and ffmpeg binaries.
type Source struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewSource(ffmpegPath, ffprobePath string, logger *zap.Logger) *Source {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Source{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

func (s *Source) Open(ctx context.Context, videoPath string) (port.Video, error) {
	duration, err := s.probeDuration(ctx, videoPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, entity.NewAnalysisError(entity.ErrUnreadableMedia, "metadata", err)
	}

	s.logger.Debug("video opened",
		zap.String("path", videoPath),
		zap.Duration("duration", duration),
	)

	return &video{source: s, path: videoPath, duration: duration}, nil
}

func (s *Source) probeDuration(ctx context.Context, videoPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	secs, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", durationStr, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

type video struct {
	source   *Source
	path     string
	duration time.Duration
}

func (v *video) Duration() time.Duration {
	return v.duration
}

// Seek decodes the single frame at t as PNG. The process exiting is the
// frame-ready signal; ctx bounds how long we wait for it.
func (v *video) Seek(ctx context.Context, t time.Duration) (image.Image, error) {
	cmd := exec.CommandContext(ctx, v.source.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(t.Seconds(), 'f', 3, 64),
		"-i", v.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, entity.NewAnalysisError(entity.ErrUnreadableMedia, "decode frame",
			fmt.Errorf("ffmpeg: %w, output: %s", err, strings.TrimSpace(stderr.String())))
	}

	if stdout.Len() == 0 {
		return nil, nil
	}

	frame, err := png.Decode(&stdout)
	if err != nil {
		return nil, entity.NewAnalysisError(entity.ErrRendering, "decode png", err)
	}
	return frame, nil
}

func (v *video) Close() error {
	return nil
}

// Available reports whether both binaries can be found.
func (s *Source) Available() error {
	for _, bin := range []string{s.ffmpegPath, s.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return errors.Join(fmt.Errorf("%s not found", bin), err)
		}
	}
	return nil
}
