package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/port"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Analyzer is the synchronous pipeline the queue worker drives.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeOutput, error)
}

// ProcessJobUseCase handles analysis requests delivered over the queue.
type ProcessJobUseCase struct {
	repo      port.AnalysisRepository
	storage   port.VideoStorage
	analyzer  Analyzer
	archiver  port.FrameArchiver
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
}

type ProcessJobConfig struct {
	TempDir    string
	MaxRetries int
}

func NewProcessJobUseCase(
	repo port.AnalysisRepository,
	storage port.VideoStorage,
	analyzer Analyzer,
	archiver port.FrameArchiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessJobConfig,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:      repo,
		storage:   storage,
		analyzer:  analyzer,
		archiver:  archiver,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
	}
}

// Execute is the rabbitmq.MessageHandler for the analysis queue. A non-nil
// return asks the consumer to requeue.
func (uc *ProcessJobUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessJobUseCase.Execute")
	defer span.End()

	var msg entity.AnalysisRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewAnalysisJob(msg.SessionID, msg.VideoKey, msg.Identifier, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, dropping redelivery")
		return nil
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	return uc.processJob(ctx, job, msg, rawMsg, log)
}

func (uc *ProcessJobUseCase) processJob(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath)
	spanDl.End()
	if err != nil {
		if ctx.Err() != nil {
			return uc.handleInterrupted(ctx, job, "download_video", err, log)
		}
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	metrics.AnalysisDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Keyed by job so only a redelivery of this same job can take over the run.
	out, err := uc.analyzer.Analyze(ctx, AnalyzeInput{
		Key:        job.ID.String(),
		VideoPath:  videoPath,
		Identifier: msg.Identifier,
	})
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrSuperseded):
			log.Info("analysis superseded by a newer delivery of the job, acking", zap.Error(err))
			return nil
		case ctx.Err() != nil:
			return uc.handleInterrupted(ctx, job, "analyze", err, log)
		case entity.IsPermanent(err):
			log.Warn("analysis failed", zap.Error(err))
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, entity.UserMessage(err), log)
		}
		log.Warn("analysis failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "analyze: "+err.Error(), log)
	}

	var archiveKey string
	if len(out.Frames) > 0 {
		archiveKey, err = uc.archiveFrames(ctx, job, msg, out, workDir)
		if err != nil {
			if ctx.Err() != nil {
				return uc.handleInterrupted(ctx, job, "archive_frames", err, log)
			}
			log.Error("frame archive failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "archive_frames: "+err.Error(), log)
		}
	}

	job.MarkCompleted(out.Result, out.FramesSampled, out.Duration.Seconds(), archiveKey)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)
	uc.discardUpload(ctx, msg.VideoKey, log)

	log.Info("job completed successfully",
		zap.Int("total_visitors", out.Result.TotalVisitors),
		zap.Int("frames_sampled", out.FramesSampled),
		zap.String("archive_key", archiveKey),
	)

	return nil
}

func (uc *ProcessJobUseCase) archiveFrames(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisRequestMessage,
	out *AnalyzeOutput,
	workDir string,
) (string, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "archive_frames")
	defer span.End()

	start := time.Now()
	zipPath := filepath.Join(workDir, "frames.zip")
	if err := uc.archiver.ArchiveFrames(ctx, out.Frames, zipPath); err != nil {
		return "", err
	}

	zipFile, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zipFile.Close()

	stat, err := zipFile.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	owner := msg.SessionID
	if owner == "" {
		owner = "anonymous"
	}
	archiveKey := fmt.Sprintf("%s/frames_%s.zip", owner, job.ID.String())
	if err := uc.storage.UploadArchive(ctx, archiveKey, zipFile, stat.Size()); err != nil {
		return "", err
	}
	metrics.AnalysisDuration.WithLabelValues("archive").Observe(time.Since(start).Seconds())
	return archiveKey, nil
}

// handleInterrupted puts the job back to PENDING when the worker's own context
// ends mid-run. The upload is kept and the message goes back on the queue.
func (uc *ProcessJobUseCase) handleInterrupted(
	ctx context.Context,
	job *entity.AnalysisJob,
	stage string,
	err error,
	log *zap.Logger,
) error {
	log.Warn("job interrupted, leaving it for redelivery", zap.String("stage", stage), zap.Error(err))
	job.Requeue()
	if uerr := uc.repo.Update(context.WithoutCancel(ctx), job); uerr != nil {
		log.Error("failed to reset interrupted job", zap.Error(uerr))
	}
	return fmt.Errorf("%s interrupted: %w", stage, err)
}

func (uc *ProcessJobUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessJobUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	job.ExhaustRetries()
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, log)
	uc.discardUpload(ctx, msg.VideoKey, log)

	metrics.AnalysesTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.Identifier, errMsg)
	}

	return nil
}

func (uc *ProcessJobUseCase) discardUpload(ctx context.Context, videoKey string, log *zap.Logger) {
	if err := uc.storage.RemoveVideo(ctx, videoKey); err != nil {
		log.Warn("failed to remove analyzed upload", zap.Error(err))
	}
}

func (uc *ProcessJobUseCase) publishStatus(ctx context.Context, job *entity.AnalysisJob, log *zap.Logger) {
	statusMsg := entity.AnalysisStatusMessage{
		JobID:         job.ID,
		SessionID:     job.SessionID,
		Status:        job.Status,
		VideoKey:      job.VideoKey,
		ArchiveKey:    job.ArchiveKey,
		FramesSampled: job.FramesSampled,
		Duration:      job.VideoDuration,
		Result:        job.Result,
		ErrorMessage:  job.ErrorMessage,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
