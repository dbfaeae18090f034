package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/analysis"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/port"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InputChecker vets an uploaded file before any decoding happens.
type InputChecker interface {
	CheckFile(path string) (string, error)
}

// FrameSampler collects frames from a video file.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string) (*analysis.SampleResult, error)
}

type AnalyzeInput struct {
	// Key identifies the resource being analyzed; analyses sharing a key are serialized.
	Key        string
	VideoPath  string
	Identifier string
}

type AnalyzeOutput struct {
	Result        entity.AnalysisResult
	Frames        []image.Image
	Duration      time.Duration
	FromScenario  bool
	FramesSampled int
}

type AnalyzeVideoUseCase struct {
	checker   InputChecker
	sampler   FrameSampler
	detector  port.FrameDetector
	synth     *analysis.Synthesizer
	scenarios port.ScenarioProvider
	inflight  *InflightRegistry
	timeout   time.Duration
	logger    *zap.Logger
}

type AnalyzeVideoConfig struct {
	// Timeout bounds one whole analysis; zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// NewAnalyzeVideoUseCase wires the pipeline. scenarios may be nil to always analyze.
func NewAnalyzeVideoUseCase(
	checker InputChecker,
	sampler FrameSampler,
	detector port.FrameDetector,
	synth *analysis.Synthesizer,
	scenarios port.ScenarioProvider,
	inflight *InflightRegistry,
	logger *zap.Logger,
	cfg AnalyzeVideoConfig,
) *AnalyzeVideoUseCase {
	if inflight == nil {
		inflight = NewInflightRegistry()
	}
	return &AnalyzeVideoUseCase{
		checker:   checker,
		sampler:   sampler,
		detector:  detector,
		synth:     synth,
		scenarios: scenarios,
		inflight:  inflight,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Inflight exposes the registry so callers can cancel a running analysis.
func (uc *AnalyzeVideoUseCase) Inflight() *InflightRegistry {
	return uc.inflight
}

// Analyze runs the pipeline for one video. A recognized identifier short-circuits
// to its canned result. On error no partial result is returned.
func (uc *AnalyzeVideoUseCase) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeOutput, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnalyzeVideoUseCase.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("analysis.key", in.Key),
		attribute.String("analysis.identifier", in.Identifier),
	)

	log := uc.logger.With(zap.String("key", in.Key), zap.String("identifier", in.Identifier))
	start := time.Now()

	out, err := uc.analyze(ctx, in, log)
	if err != nil {
		span.RecordError(err)
		metrics.AnalysesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	metrics.AnalysesTotal.WithLabelValues("completed").Inc()
	metrics.AnalysisDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	metrics.VisitorsDetected.Observe(float64(out.Result.TotalVisitors))

	log.Info("analysis completed",
		zap.Int("total_visitors", out.Result.TotalVisitors),
		zap.Int("frames_sampled", out.FramesSampled),
		zap.Bool("from_scenario", out.FromScenario),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (uc *AnalyzeVideoUseCase) analyze(ctx context.Context, in AnalyzeInput, log *zap.Logger) (*AnalyzeOutput, error) {
	if uc.checker != nil {
		mimeType, err := uc.checker.CheckFile(in.VideoPath)
		if err != nil {
			log.Info("upload rejected", zap.Error(err))
			return nil, err
		}
		log.Debug("upload accepted", zap.String("mime_type", mimeType))
	}

	// Acquire before the scenario lookup so a fixture upload also supersedes
	// whatever the key was running.
	runCtx, release, err := uc.inflight.Acquire(ctx, in.Key)
	if err != nil {
		return nil, err
	}
	defer release()

	if uc.scenarios != nil && in.Identifier != "" {
		if result, ok := uc.scenarios.Lookup(in.Identifier); ok {
			log.Info("identifier matched scenario, skipping frame analysis")
			return &AnalyzeOutput{Result: result, FromScenario: true}, nil
		}
	}

	out, err := uc.runPipeline(runCtx, in, log)
	if err != nil {
		return nil, superseded(runCtx, err)
	}
	return out, nil
}

// superseded tags a cancellation caused by a newer analysis on the same key,
// so callers can tell it apart from their own context being cancelled.
func superseded(runCtx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && errors.Is(context.Cause(runCtx), entity.ErrSuperseded) {
		return fmt.Errorf("%w: %w", entity.ErrSuperseded, err)
	}
	return err
}

func (uc *AnalyzeVideoUseCase) runPipeline(runCtx context.Context, in AnalyzeInput, log *zap.Logger) (*AnalyzeOutput, error) {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, uc.timeout)
		defer cancel()
	}

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	tracer := otel.Tracer("usecase")

	sampleStart := time.Now()
	sampleCtx, spanSample := tracer.Start(runCtx, "sample_frames")
	sampled, err := uc.sampler.Sample(sampleCtx, in.VideoPath)
	spanSample.End()
	if err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	metrics.AnalysisDuration.WithLabelValues("sample").Observe(time.Since(sampleStart).Seconds())
	metrics.FramesSampledTotal.Add(float64(len(sampled.Frames)))

	detectStart := time.Now()
	_, spanDetect := tracer.Start(runCtx, "detect")
	detections := make([]entity.Detection, 0, len(sampled.Frames))
	for i, frame := range sampled.Frames {
		if err := runCtx.Err(); err != nil {
			spanDetect.End()
			return nil, err
		}
		det, err := uc.detector.Detect(frame)
		if err != nil {
			spanDetect.End()
			return nil, fmt.Errorf("detect frame %d: %w", i, err)
		}
		if det.Count > 0 {
			log.Debug("detected visitors in frame", zap.Int("frame", i), zap.Int("count", det.Count))
		}
		detections = append(detections, det)
	}
	spanDetect.End()
	metrics.AnalysisDuration.WithLabelValues("detect").Observe(time.Since(detectStart).Seconds())

	peak, positions := analysis.Aggregate(detections)
	return &AnalyzeOutput{
		Result:        uc.synth.Synthesize(peak, positions),
		Frames:        sampled.Frames,
		Duration:      sampled.Duration,
		FramesSampled: len(sampled.Frames),
	}, nil
}
