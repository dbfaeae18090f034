package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by FindByID for unknown jobs.
var ErrNotFound = errors.New("analysis job not found")

type AnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

func (r *AnalysisRepository) Create(ctx context.Context, job *entity.AnalysisJob) error {
	query := `
		INSERT INTO analysis_jobs (
			id, session_id, video_key, identifier, status, frames_sampled,
			file_size, video_duration, total_visitors, archive_key, result,
			attempt, max_attempts, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		job.ID, job.SessionID, job.VideoKey, job.Identifier, string(job.Status),
		job.FramesSampled, job.FileSize, job.VideoDuration, job.TotalVisitors,
		job.ArchiveKey, result, job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis job: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) Update(ctx context.Context, job *entity.AnalysisJob) error {
	query := `
		UPDATE analysis_jobs SET
			status=$2, frames_sampled=$3, video_duration=$4, total_visitors=$5,
			archive_key=$6, result=$7, attempt=$8, max_attempts=$9,
			error_message=$10, updated_at=$11, completed_at=$12
		WHERE id=$1`

	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.FramesSampled, job.VideoDuration,
		job.TotalVisitors, job.ArchiveKey, result, job.Attempt, job.MaxAttempts,
		job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update analysis job: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AnalysisJob, error) {
	query := `
		SELECT id, session_id, video_key, identifier, status, frames_sampled,
			file_size, video_duration, total_visitors, archive_key, result,
			attempt, max_attempts, error_message, created_at, updated_at, completed_at
		FROM analysis_jobs WHERE id=$1`

	job := &entity.AnalysisJob{}
	var status string
	var result []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.SessionID, &job.VideoKey, &job.Identifier, &status,
		&job.FramesSampled, &job.FileSize, &job.VideoDuration, &job.TotalVisitors,
		&job.ArchiveKey, &result, &job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find analysis job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)

	if len(result) > 0 {
		job.Result = &entity.AnalysisResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	return job, nil
}

func encodeResult(r *entity.AnalysisResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return data, nil
}
