package analysis

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *AIAnalysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*AIAnalysis, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AIAnalysis, int, error)
}
