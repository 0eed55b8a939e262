package org

import (
	"context"

	"github.com/google/uuid"
)

type WorkspaceRepository interface {
	Create(ctx context.Context, w *Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	Update(ctx context.Context, w *Workspace) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Workspace, int, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	GetByUserAndWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error)
	Update(ctx context.Context, m *Membership) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Membership, int, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	Update(ctx context.Context, inv *Invitation) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Invitation, int, error)
}
