// Package app assembles the analysis pipeline from configuration for the
// worker and CLI entrypoints.
package app

import (
	"fmt"

	"github.com/footfallfinder/footfall-analysis-service/internal/analysis"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/port"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/config"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/ffmpeg"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/mediatype"
	"github.com/footfallfinder/footfall-analysis-service/internal/scenario"
	"github.com/footfallfinder/footfall-analysis-service/internal/usecase"
	"go.uber.org/zap"
)

// Scenarios returns the fixture provider selected by cfg, or nil when fixtures
// are disabled.
func Scenarios(cfg *config.Config) (port.ScenarioProvider, error) {
	if !cfg.ScenariosEnabled {
		return nil, nil
	}
	var (
		p   *scenario.FixtureProvider
		err error
	)
	if cfg.ScenarioFile != "" {
		p, err = scenario.Load(cfg.ScenarioFile, cfg.HeatmapCap)
	} else {
		p, err = scenario.NewDefaultProvider(cfg.HeatmapCap)
	}
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	return p, nil
}

func DetectorConfig(cfg *config.Config) analysis.ContrastConfig {
	return analysis.ContrastConfig{
		Stride:    cfg.DetectorStride,
		Threshold: cfg.DetectorThreshold,
		MinRatio:  cfg.DetectorMinRatio,
		Count:     cfg.DetectorCount,
	}
}

// NewAnalyzer wires ffmpeg decoding, sampling, detection and synthesis into
// the analyze use case.
func NewAnalyzer(cfg *config.Config, log *zap.Logger) (*usecase.AnalyzeVideoUseCase, error) {
	source := ffmpeg.NewSource(cfg.FFmpegPath, cfg.FFprobePath, log)
	if err := source.Available(); err != nil {
		return nil, err
	}

	scenarios, err := Scenarios(cfg)
	if err != nil {
		return nil, err
	}

	sampler := analysis.NewSampler(source, analysis.SamplerConfig{
		Samples:     cfg.SampleCount,
		SeekTimeout: cfg.SeekTimeout,
	}, log)

	return usecase.NewAnalyzeVideoUseCase(
		mediatype.NewChecker(cfg.MaxUploadBytes),
		sampler,
		analysis.NewContrastDetector(DetectorConfig(cfg)),
		analysis.NewSynthesizer(cfg.HeatmapCap),
		scenarios,
		usecase.NewInflightRegistry(),
		log,
		usecase.AnalyzeVideoConfig{Timeout: cfg.AnalysisTimeout},
	), nil
}
