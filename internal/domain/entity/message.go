package entity

import "github.com/google/uuid"

// AnalysisRequestMessage is the inbound message from the footfall.analysis queue.
type AnalysisRequestMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	SessionID   string    `json:"session_id"`
	VideoKey    string    `json:"video_key"`
	Identifier  string    `json:"identifier,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	FileSize    int64     `json:"file_size"`
	UserEmail   string    `json:"user_email,omitempty"`
}

// AnalysisStatusMessage is the outbound message published to the footfall.status queue.
type AnalysisStatusMessage struct {
	JobID         uuid.UUID       `json:"job_id"`
	SessionID     string          `json:"session_id"`
	Status        JobStatus       `json:"status"`
	VideoKey      string          `json:"video_key"`
	ArchiveKey    string          `json:"archive_key,omitempty"`
	FramesSampled int             `json:"frames_sampled,omitempty"`
	Duration      float64         `json:"duration_seconds,omitempty"`
	Result        *AnalysisResult `json:"result,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Attempt       int             `json:"attempt"`
	MaxAttempts   int             `json:"max_attempts"`
}
