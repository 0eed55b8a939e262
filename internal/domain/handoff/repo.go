package handoff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, h *Handoff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error)
	SetAcknowledged(ctx context.Context, h *Handoff) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, shift Shift, limit, offset int) ([]*Handoff, int, error)
}
