package org

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/notification"
)

var (
	ErrAlreadyMember     = errors.New("user is already a member of this workspace")
	ErrInvitationExpired = errors.New("invitation has expired")
	ErrInvitationUsed    = errors.New("invitation is no longer pending")
	ErrLastOwner         = errors.New("workspace must keep at least one owner")
)

const invitationTTL = 7 * 24 * time.Hour

type Service struct {
	workspaces  WorkspaceRepository
	memberships MembershipRepository
	invitations InvitationRepository
	notifier    *notification.Manager
}

func NewService(ws WorkspaceRepository, ms MembershipRepository, inv InvitationRepository, notifier *notification.Manager) *Service {
	return &Service{workspaces: ws, memberships: ms, invitations: inv, notifier: notifier}
}

// CreateWorkspace creates a workspace and makes the creator its owner in
// one step, so a workspace is never ownerless.
func (s *Service) CreateWorkspace(ctx context.Context, w *Workspace, creator uuid.UUID, creatorEmail string) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if creator == uuid.Nil {
		return fmt.Errorf("creator is required")
	}
	w.CreatedBy = creator

	if err := s.workspaces.Create(ctx, w); err != nil {
		return err
	}

	owner := &Membership{
		WorkspaceID: w.ID,
		UserID:      creator,
		Email:       creatorEmail,
		Role:        access.RoleOwner,
		Status:      access.StatusActive,
	}
	return s.memberships.Create(ctx, owner)
}

func (s *Service) GetWorkspace(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	return s.workspaces.GetByID(ctx, id)
}

func (s *Service) UpdateWorkspace(ctx context.Context, w *Workspace) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return s.workspaces.Update(ctx, w)
}

// ListWorkspacesForUser returns the workspaces where the user holds an
// active membership.
func (s *Service) ListWorkspacesForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Workspace, int, error) {
	return s.workspaces.ListForUser(ctx, userID, limit, offset)
}

// -- Members --

func (s *Service) ListMembers(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	return s.memberships.ListByWorkspace(ctx, workspaceID, limit, offset)
}

// ChangeRole sets a member's role. Demoting the last owner is rejected.
func (s *Service) ChangeRole(ctx context.Context, membershipID uuid.UUID, newRole access.Role) (*Membership, error) {
	if !newRole.Valid() {
		return nil, fmt.Errorf("unknown role %q", newRole)
	}

	m, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	if m.Role == access.RoleOwner && newRole != access.RoleOwner {
		if err := s.ensureAnotherOwner(ctx, m); err != nil {
			return nil, err
		}
	}

	m.Role = newRole
	if err := s.memberships.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DisableMember soft-disables a membership. The row stays so history keeps
// its author references; the access resolver treats disabled as absent.
func (s *Service) DisableMember(ctx context.Context, membershipID uuid.UUID) (*Membership, error) {
	m, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	if m.Role == access.RoleOwner && m.Status == access.StatusActive {
		if err := s.ensureAnotherOwner(ctx, m); err != nil {
			return nil, err
		}
	}

	m.Status = access.StatusDisabled
	if err := s.memberships.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ensureAnotherOwner(ctx context.Context, m *Membership) error {
	members, _, err := s.memberships.ListByWorkspace(ctx, m.WorkspaceID, 1000, 0)
	if err != nil {
		return err
	}
	for _, other := range members {
		if other.ID != m.ID && other.Role == access.RoleOwner && other.Status == access.StatusActive {
			return nil
		}
	}
	return ErrLastOwner
}

// -- Invitations --

// Invite creates a pending invitation and emails the recipient. No
// membership row exists until the token is redeemed via Accept.
func (s *Service) Invite(ctx context.Context, workspaceID uuid.UUID, email string, role access.Role, invitedBy uuid.UUID) (*Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	inv := &Invitation{
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		InvitedBy:   invitedBy,
		Status:      "pending",
		ExpiresAt:   time.Now().UTC().Add(invitationTTL),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		ws, err := s.workspaces.GetByID(ctx, workspaceID)
		wsName := workspaceID.String()
		if err == nil {
			wsName = ws.Name
		}
		// Delivery failure does not invalidate the invitation; the token
		// can be resent.
		s.notifier.SendFromTemplate(ctx, "workspace-invitation", map[string]string{
			"workspace_name": wsName,
			"role":           string(role),
		}, email)
	}

	return inv, nil
}

// Accept redeems an invitation token for the calling user, creating or
// activating their membership.
func (s *Service) Accept(ctx context.Context, token string, userID uuid.UUID, userEmail string) (*Membership, error) {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status != "pending" {
		return nil, ErrInvitationUsed
	}
	if time.Now().UTC().After(inv.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	existing, err := s.memberships.GetByUserAndWorkspace(ctx, userID, inv.WorkspaceID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	switch {
	case err == nil && existing.Status == access.StatusActive:
		return nil, ErrAlreadyMember
	case err == nil:
		// Re-activate the invited/disabled row with the invited role.
		existing.Role = inv.Role
		existing.Status = access.StatusActive
		if err := s.memberships.Update(ctx, existing); err != nil {
			return nil, err
		}
		inv.Status = "accepted"
		if err := s.invitations.Update(ctx, inv); err != nil {
			return nil, err
		}
		return existing, nil
	}

	m := &Membership{
		WorkspaceID: inv.WorkspaceID,
		UserID:      userID,
		Email:       userEmail,
		Role:        inv.Role,
		Status:      access.StatusActive,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, err
	}

	inv.Status = "accepted"
	if err := s.invitations.Update(ctx, inv); err != nil {
		return nil, err
	}
	return m, nil
}

// Revoke marks a pending invitation revoked so its token stops working.
func (s *Service) Revoke(ctx context.Context, token string) error {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if inv.Status != "pending" {
		return ErrInvitationUsed
	}
	inv.Status = "revoked"
	return s.invitations.Update(ctx, inv)
}

func (s *Service) ListInvitations(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Invitation, int, error) {
	return s.invitations.ListByWorkspace(ctx, workspaceID, limit, offset)
}

func newInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
