package org

import (
	"time"

	"github.com/google/uuid"

	"github.com/acilhq/acil/internal/platform/access"
)

// Workspace is a care unit (an ED, a ward) inside an organization. All
// patient data hangs off a workspace; authorization always goes through
// workspace membership.
type Workspace struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Membership maps to the workspace_members table. At most one row exists
// per (workspace, user); members are disabled, never deleted.
type Membership struct {
	ID          uuid.UUID               `db:"id" json:"id"`
	WorkspaceID uuid.UUID               `db:"workspace_id" json:"workspace_id"`
	UserID      uuid.UUID               `db:"user_id" json:"user_id"`
	Email       string                  `db:"email" json:"email"`
	Role        access.Role             `db:"role" json:"role"`
	Status      access.MembershipStatus `db:"status" json:"status"`
	CreatedAt   time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time               `db:"updated_at" json:"updated_at"`
}

// Invitation maps to the workspace_invitations table. Accepting an
// invitation flips the matching membership from invited to active.
type Invitation struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	WorkspaceID uuid.UUID   `db:"workspace_id" json:"workspace_id"`
	Email       string      `db:"email" json:"email"`
	Role        access.Role `db:"role" json:"role"`
	Token       string      `db:"token" json:"token"`
	InvitedBy   uuid.UUID   `db:"invited_by" json:"invited_by"`
	Status      string      `db:"status" json:"status"` // pending, accepted, revoked
	ExpiresAt   time.Time   `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}
