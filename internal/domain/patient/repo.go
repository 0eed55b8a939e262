package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, status Status, limit, offset int) ([]*Patient, int, error)
	LookupWorkspace(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
	// Status history
	AddStatusChange(ctx context.Context, ch *StatusChange) error
	StatusHistory(ctx context.Context, patientID uuid.UUID) ([]*StatusChange, error)
}

type VitalsRepository interface {
	Create(ctx context.Context, v *VitalsEntry) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsEntry, int, error)
	// Recent returns the newest entries first, capped at n.
	Recent(ctx context.Context, patientID uuid.UUID, n int) ([]*VitalsEntry, error)
}
