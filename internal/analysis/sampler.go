package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	DefaultSampleCount = 10
	DefaultSeekTimeout = 5 * time.Second
)

type SamplerConfig struct {
	Samples     int
	SeekTimeout time.Duration
}

// SampleResult holds the frames that were reached, in timestamp order.
type SampleResult struct {
	Frames     []image.Image
	Timestamps []time.Duration
	Duration   time.Duration
}

// Sampler seeks a video to evenly spaced timestamps and collects one frame at each.
type Sampler struct {
	source      port.VideoSource
	samples     int
	seekTimeout time.Duration
	logger      *zap.Logger
}

func NewSampler(source port.VideoSource, cfg SamplerConfig, logger *zap.Logger) *Sampler {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSampleCount
	}
	if cfg.SeekTimeout <= 0 {
		cfg.SeekTimeout = DefaultSeekTimeout
	}
	return &Sampler{
		source:      source,
		samples:     cfg.Samples,
		seekTimeout: cfg.SeekTimeout,
		logger:      logger,
	}
}

// Sample opens videoPath and reads frames at i*duration/samples. Seeks run one
// at a time; each must finish within the seek timeout. Partial frames are
// dropped when the context is cancelled or a seek stalls.
func (s *Sampler) Sample(ctx context.Context, videoPath string) (*SampleResult, error) {
	video, err := s.source.Open(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	duration := video.Duration()
	if duration <= 0 {
		return nil, entity.NewAnalysisError(entity.ErrUnreadableMedia, "sample",
			fmt.Errorf("invalid duration %s", duration))
	}

	interval := duration / time.Duration(s.samples)
	result := &SampleResult{Duration: duration}

	for i := 0; i < s.samples; i++ {
		ts := time.Duration(i) * interval
		frame, err := s.seek(ctx, video, ts)
		if err != nil {
			return nil, err
		}
		if frame == nil {
			s.logger.Debug("no frame at timestamp, skipping", zap.Duration("timestamp", ts))
			continue
		}
		result.Frames = append(result.Frames, frame)
		result.Timestamps = append(result.Timestamps, ts)
	}

	s.logger.Debug("frames sampled",
		zap.Int("requested", s.samples),
		zap.Int("reached", len(result.Frames)),
		zap.Duration("duration", duration),
	)

	return result, nil
}

type seekResult struct {
	frame image.Image
	err   error
}

// seek waits for the frame-ready signal from the video or gives up after the seek timeout.
func (s *Sampler) seek(ctx context.Context, video port.Video, ts time.Duration) (image.Image, error) {
	seekCtx, cancel := context.WithTimeout(ctx, s.seekTimeout)
	defer cancel()

	ready := make(chan seekResult, 1)
	go func() {
		frame, err := video.Seek(seekCtx, ts)
		ready <- seekResult{frame: frame, err: err}
	}()

	select {
	case r := <-ready:
		if r.err == nil {
			return r.frame, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(r.err, context.DeadlineExceeded) {
			return nil, entity.NewAnalysisError(entity.ErrTimeout, fmt.Sprintf("seek %s", ts), r.err)
		}
		return nil, fmt.Errorf("seek %s: %w", ts, r.err)
	case <-seekCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, entity.NewAnalysisError(entity.ErrTimeout, fmt.Sprintf("seek %s", ts), seekCtx.Err())
	}
}
