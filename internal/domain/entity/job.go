package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type AnalysisJob struct {
	ID            uuid.UUID
	SessionID     string
	VideoKey      string
	Identifier    string
	Status        JobStatus
	FramesSampled int
	FileSize      int64
	VideoDuration float64
	TotalVisitors int
	ArchiveKey    string
	Result        *AnalysisResult
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewAnalysisJob(sessionID, videoKey, identifier string, fileSize int64, maxAttempts int) *AnalysisJob {
	now := time.Now().UTC()
	return &AnalysisJob{
		ID:          uuid.New(),
		SessionID:   sessionID,
		VideoKey:    videoKey,
		Identifier:  identifier,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *AnalysisJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *AnalysisJob) MarkCompleted(result AnalysisResult, framesSampled int, duration float64, archiveKey string) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.Result = &result
	j.TotalVisitors = result.TotalVisitors
	j.FramesSampled = framesSampled
	j.VideoDuration = duration
	j.ArchiveKey = archiveKey
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *AnalysisJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// Requeue returns an interrupted job to PENDING and gives back the attempt it
// was charged, since the job itself did not fail.
func (j *AnalysisJob) Requeue() {
	j.Status = JobStatusPending
	if j.Attempt > 0 {
		j.Attempt--
	}
	j.UpdatedAt = time.Now().UTC()
}

// ExhaustRetries stops further attempts for failures that retrying can't fix.
func (j *AnalysisJob) ExhaustRetries() {
	j.MaxAttempts = j.Attempt
}

func (j *AnalysisJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
