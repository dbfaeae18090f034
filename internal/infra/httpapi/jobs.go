package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/port"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/postgres"
	"github.com/footfallfinder/footfall-analysis-service/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobsBackend is what the queue-backed endpoints need: the upload bucket, the
// job store and the analysis queue.
type JobsBackend struct {
	Checker    usecase.InputChecker
	Storage    port.VideoStorage
	Repo       port.AnalysisRepository
	Publisher  port.AnalysisPublisher
	MaxRetries int
}

type jobView struct {
	ID            uuid.UUID              `json:"id"`
	SessionID     string                 `json:"sessionId"`
	Identifier    string                 `json:"identifier,omitempty"`
	Status        entity.JobStatus       `json:"status"`
	FramesSampled int                    `json:"framesSampled,omitempty"`
	Duration      float64                `json:"durationSeconds,omitempty"`
	ArchiveKey    string                 `json:"archiveKey,omitempty"`
	Attempt       int                    `json:"attempt"`
	MaxAttempts   int                    `json:"maxAttempts"`
	Error         string                 `json:"error,omitempty"`
	Result        *entity.AnalysisResult `json:"result,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	CompletedAt   *time.Time             `json:"completedAt,omitempty"`
}

func newJobView(job *entity.AnalysisJob) jobView {
	return jobView{
		ID:            job.ID,
		SessionID:     job.SessionID,
		Identifier:    job.Identifier,
		Status:        job.Status,
		FramesSampled: job.FramesSampled,
		Duration:      job.VideoDuration,
		ArchiveKey:    job.ArchiveKey,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
		Error:         job.ErrorMessage,
		Result:        job.Result,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
	}
}

// CreateJob stores the upload and queues it for a worker.
func (h *Handler) CreateJob(c *gin.Context) {
	sessionID := h.session(c)

	path, identifier, cleanup, ok := h.receiveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	contentType := "application/octet-stream"
	if h.jobs.Checker != nil {
		mimeType, err := h.jobs.Checker.CheckFile(path)
		if err != nil {
			_ = c.Error(err)
			status, msg := statusFor(err)
			Error(c, status, msg)
			return
		}
		contentType = mimeType
	}

	f, err := os.Open(path)
	if err != nil {
		InternalError(c, "could not read the upload")
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		InternalError(c, "could not read the upload")
		return
	}

	ctx := detached(c.Request.Context())
	job := entity.NewAnalysisJob(sessionID, "", identifier, stat.Size(), h.jobs.MaxRetries)
	job.VideoKey = fmt.Sprintf("%s/%s%s", sessionID, job.ID.String(), strings.ToLower(filepath.Ext(identifier)))
	log := h.logger.With(zap.String("job_id", job.ID.String()), zap.String("session_id", sessionID))

	if err := h.jobs.Storage.UploadVideo(ctx, job.VideoKey, f, stat.Size(), contentType); err != nil {
		log.Error("failed to upload video", zap.Error(err))
		_ = c.Error(err)
		InternalError(c, "could not store the upload")
		return
	}
	if err := h.jobs.Repo.Create(ctx, job); err != nil {
		log.Error("failed to create job record", zap.Error(err))
		_ = c.Error(err)
		h.removeUpload(ctx, job.VideoKey, log)
		InternalError(c, "could not create the analysis job")
		return
	}

	msg, err := json.Marshal(entity.AnalysisRequestMessage{
		JobID:       job.ID,
		SessionID:   sessionID,
		VideoKey:    job.VideoKey,
		Identifier:  identifier,
		ContentType: contentType,
		FileSize:    stat.Size(),
		UserEmail:   strings.TrimSpace(c.PostForm("email")),
	})
	if err == nil {
		err = h.jobs.Publisher.PublishAnalysisRequest(ctx, msg)
	}
	if err != nil {
		log.Error("failed to publish analysis request", zap.Error(err))
		_ = c.Error(err)
		h.abandonJob(ctx, job, log)
		InternalError(c, "could not queue the analysis job")
		return
	}

	log.Info("analysis job queued", zap.String("video_key", job.VideoKey))
	Accepted(c, newJobView(job))
}

// abandonJob marks a job that never reached the queue as failed and drops its
// upload, so neither a PENDING row nor the video is left behind.
func (h *Handler) abandonJob(ctx context.Context, job *entity.AnalysisJob, log *zap.Logger) {
	job.MarkFailed("could not queue the analysis job")
	job.ExhaustRetries()
	if err := h.jobs.Repo.Update(ctx, job); err != nil {
		log.Error("failed to mark unqueued job failed", zap.Error(err))
	}
	h.removeUpload(ctx, job.VideoKey, log)
}

func (h *Handler) removeUpload(ctx context.Context, key string, log *zap.Logger) {
	if err := h.jobs.Storage.RemoveVideo(ctx, key); err != nil {
		log.Warn("failed to remove orphaned upload", zap.String("video_key", key), zap.Error(err))
	}
}

func (h *Handler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	job, err := h.jobs.Repo.FindByID(c.Request.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		NotFound(c, "analysis job not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		InternalError(c, "could not load the analysis job")
		return
	}
	c.Set(sessionKey, job.SessionID)
	Success(c, newJobView(job))
}

func (h *Handler) jobsEnabled() bool {
	return h.jobs != nil && h.jobs.Storage != nil && h.jobs.Repo != nil && h.jobs.Publisher != nil
}

