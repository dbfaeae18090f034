package port

import (
	"context"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/google/uuid"
)

type AnalysisRepository interface {
	Create(ctx context.Context, job *entity.AnalysisJob) error
	Update(ctx context.Context, job *entity.AnalysisJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AnalysisJob, error)
}
