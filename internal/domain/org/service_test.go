package org

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/acilhq/acil/internal/platform/access"
)

type mockWorkspaceRepo struct {
	workspaces map[uuid.UUID]*Workspace
}

func (m *mockWorkspaceRepo) Create(_ context.Context, w *Workspace) error {
	w.ID = uuid.New()
	w.CreatedAt = time.Now()
	m.workspaces[w.ID] = w
	return nil
}

func (m *mockWorkspaceRepo) GetByID(_ context.Context, id uuid.UUID) (*Workspace, error) {
	w, ok := m.workspaces[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return w, nil
}

func (m *mockWorkspaceRepo) Update(_ context.Context, w *Workspace) error {
	if _, ok := m.workspaces[w.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.workspaces[w.ID] = w
	return nil
}

func (m *mockWorkspaceRepo) ListForUser(_ context.Context, _ uuid.UUID, _, _ int) ([]*Workspace, int, error) {
	var out []*Workspace
	for _, w := range m.workspaces {
		out = append(out, w)
	}
	return out, len(out), nil
}

type mockMembershipRepo struct {
	memberships map[uuid.UUID]*Membership
	lookupErr   error
}

func (m *mockMembershipRepo) Create(_ context.Context, mem *Membership) error {
	mem.ID = uuid.New()
	m.memberships[mem.ID] = mem
	return nil
}

func (m *mockMembershipRepo) GetByID(_ context.Context, id uuid.UUID) (*Membership, error) {
	mem, ok := m.memberships[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return mem, nil
}

func (m *mockMembershipRepo) GetByUserAndWorkspace(_ context.Context, userID, wsID uuid.UUID) (*Membership, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, mem := range m.memberships {
		if mem.UserID == userID && mem.WorkspaceID == wsID {
			return mem, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockMembershipRepo) Update(_ context.Context, mem *Membership) error {
	if _, ok := m.memberships[mem.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.memberships[mem.ID] = mem
	return nil
}

func (m *mockMembershipRepo) ListByWorkspace(_ context.Context, wsID uuid.UUID, _, _ int) ([]*Membership, int, error) {
	var out []*Membership
	for _, mem := range m.memberships {
		if mem.WorkspaceID == wsID {
			out = append(out, mem)
		}
	}
	return out, len(out), nil
}

type mockInvitationRepo struct {
	invitations map[string]*Invitation
}

func (m *mockInvitationRepo) Create(_ context.Context, inv *Invitation) error {
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	m.invitations[inv.Token] = inv
	return nil
}

func (m *mockInvitationRepo) GetByToken(_ context.Context, token string) (*Invitation, error) {
	inv, ok := m.invitations[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return inv, nil
}

func (m *mockInvitationRepo) Update(_ context.Context, inv *Invitation) error {
	m.invitations[inv.Token] = inv
	return nil
}

func (m *mockInvitationRepo) ListByWorkspace(_ context.Context, wsID uuid.UUID, _, _ int) ([]*Invitation, int, error) {
	var out []*Invitation
	for _, inv := range m.invitations {
		if inv.WorkspaceID == wsID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func newTestService() (*Service, *mockWorkspaceRepo, *mockMembershipRepo, *mockInvitationRepo) {
	ws := &mockWorkspaceRepo{workspaces: make(map[uuid.UUID]*Workspace)}
	ms := &mockMembershipRepo{memberships: make(map[uuid.UUID]*Membership)}
	inv := &mockInvitationRepo{invitations: make(map[string]*Invitation)}
	return NewService(ws, ms, inv, nil), ws, ms, inv
}

func TestCreateWorkspaceMakesCreatorOwner(t *testing.T) {
	svc, _, ms, _ := newTestService()
	creator := uuid.New()

	w := &Workspace{Name: "Night ED"}
	if err := svc.CreateWorkspace(context.Background(), w, creator, "owner@example.com"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	m, err := ms.GetByUserAndWorkspace(context.Background(), creator, w.ID)
	if err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if m.Role != access.RoleOwner || m.Status != access.StatusActive {
		t.Errorf("creator membership = %s/%s, want owner/active", m.Role, m.Status)
	}
}

func TestCreateWorkspaceRequiresName(t *testing.T) {
	svc, _, _, _ := newTestService()
	if err := svc.CreateWorkspace(context.Background(), &Workspace{Name: "  "}, uuid.New(), "x@y.z"); err == nil {
		t.Error("blank name should be rejected")
	}
}

func TestChangeRoleRejectsLastOwnerDemotion(t *testing.T) {
	svc, _, ms, _ := newTestService()
	wsID := uuid.New()

	owner := &Membership{WorkspaceID: wsID, UserID: uuid.New(), Role: access.RoleOwner, Status: access.StatusActive}
	ms.Create(context.Background(), owner)

	if _, err := svc.ChangeRole(context.Background(), owner.ID, access.RoleDoctor); !errors.Is(err, ErrLastOwner) {
		t.Errorf("err = %v, want ErrLastOwner", err)
	}

	// With a second active owner the demotion is fine.
	second := &Membership{WorkspaceID: wsID, UserID: uuid.New(), Role: access.RoleOwner, Status: access.StatusActive}
	ms.Create(context.Background(), second)

	m, err := svc.ChangeRole(context.Background(), owner.ID, access.RoleDoctor)
	if err != nil {
		t.Fatalf("ChangeRole with second owner: %v", err)
	}
	if m.Role != access.RoleDoctor {
		t.Errorf("role = %s, want doctor", m.Role)
	}
}

func TestChangeRoleRejectsUnknownRole(t *testing.T) {
	svc, _, ms, _ := newTestService()
	m := &Membership{WorkspaceID: uuid.New(), UserID: uuid.New(), Role: access.RoleDoctor, Status: access.StatusActive}
	ms.Create(context.Background(), m)

	if _, err := svc.ChangeRole(context.Background(), m.ID, access.Role("superuser")); err == nil {
		t.Error("unknown role should be rejected")
	}
}

func TestDisableMemberSoftDisables(t *testing.T) {
	svc, _, ms, _ := newTestService()
	wsID := uuid.New()

	owner := &Membership{WorkspaceID: wsID, UserID: uuid.New(), Role: access.RoleOwner, Status: access.StatusActive}
	doctor := &Membership{WorkspaceID: wsID, UserID: uuid.New(), Role: access.RoleDoctor, Status: access.StatusActive}
	ms.Create(context.Background(), owner)
	ms.Create(context.Background(), doctor)

	m, err := svc.DisableMember(context.Background(), doctor.ID)
	if err != nil {
		t.Fatalf("DisableMember: %v", err)
	}
	if m.Status != access.StatusDisabled {
		t.Errorf("status = %s, want disabled", m.Status)
	}

	// Row still exists.
	if _, err := ms.GetByID(context.Background(), doctor.ID); err != nil {
		t.Error("disabled membership row should remain")
	}
}

func TestDisableLastOwnerRejected(t *testing.T) {
	svc, _, ms, _ := newTestService()
	owner := &Membership{WorkspaceID: uuid.New(), UserID: uuid.New(), Role: access.RoleOwner, Status: access.StatusActive}
	ms.Create(context.Background(), owner)

	if _, err := svc.DisableMember(context.Background(), owner.ID); !errors.Is(err, ErrLastOwner) {
		t.Errorf("err = %v, want ErrLastOwner", err)
	}
}

func TestInviteAndAccept(t *testing.T) {
	svc, _, _, _ := newTestService()
	wsID := uuid.New()
	inviter := uuid.New()

	inv, err := svc.Invite(context.Background(), wsID, "New.Doc@Example.com", access.RoleResident, inviter)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if inv.Email != "new.doc@example.com" {
		t.Errorf("email should be normalized, got %q", inv.Email)
	}
	if inv.Status != "pending" || inv.Token == "" {
		t.Errorf("invitation = %+v", inv)
	}

	userID := uuid.New()
	m, err := svc.Accept(context.Background(), inv.Token, userID, "new.doc@example.com")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if m.Role != access.RoleResident || m.Status != access.StatusActive {
		t.Errorf("membership = %s/%s, want resident/active", m.Role, m.Status)
	}

	// Second redemption fails.
	if _, err := svc.Accept(context.Background(), inv.Token, uuid.New(), "other@example.com"); !errors.Is(err, ErrInvitationUsed) {
		t.Errorf("err = %v, want ErrInvitationUsed", err)
	}
}

func TestAcceptExpiredInvitation(t *testing.T) {
	svc, _, _, invRepo := newTestService()
	inv := &Invitation{
		WorkspaceID: uuid.New(),
		Email:       "doc@example.com",
		Role:        access.RoleDoctor,
		Token:       "expired-token",
		Status:      "pending",
		ExpiresAt:   time.Now().UTC().Add(-time.Hour),
	}
	invRepo.Create(context.Background(), inv)

	if _, err := svc.Accept(context.Background(), "expired-token", uuid.New(), "doc@example.com"); !errors.Is(err, ErrInvitationExpired) {
		t.Errorf("err = %v, want ErrInvitationExpired", err)
	}
}

func TestAcceptReactivatesDisabledMembership(t *testing.T) {
	svc, _, ms, invRepo := newTestService()
	wsID := uuid.New()
	userID := uuid.New()

	old := &Membership{WorkspaceID: wsID, UserID: userID, Role: access.RoleDoctor, Status: access.StatusDisabled}
	ms.Create(context.Background(), old)

	inv := &Invitation{
		WorkspaceID: wsID,
		Email:       "doc@example.com",
		Role:        access.RoleObserver,
		Token:       "rejoin-token",
		Status:      "pending",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}
	invRepo.Create(context.Background(), inv)

	m, err := svc.Accept(context.Background(), "rejoin-token", userID, "doc@example.com")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if m.ID != old.ID {
		t.Error("existing membership row should be reused")
	}
	if m.Role != access.RoleObserver || m.Status != access.StatusActive {
		t.Errorf("membership = %s/%s, want observer/active (invited role wins)", m.Role, m.Status)
	}
}

func TestAcceptRejectsActiveMember(t *testing.T) {
	svc, _, ms, invRepo := newTestService()
	wsID := uuid.New()
	userID := uuid.New()

	ms.Create(context.Background(), &Membership{WorkspaceID: wsID, UserID: userID, Role: access.RoleDoctor, Status: access.StatusActive})
	invRepo.Create(context.Background(), &Invitation{
		WorkspaceID: wsID, Email: "doc@example.com", Role: access.RoleAdmin,
		Token: "dup-token", Status: "pending", ExpiresAt: time.Now().UTC().Add(time.Hour),
	})

	if _, err := svc.Accept(context.Background(), "dup-token", userID, "doc@example.com"); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestAcceptSurfacesMembershipLookupFailure(t *testing.T) {
	svc, _, ms, invRepo := newTestService()
	invRepo.Create(context.Background(), &Invitation{
		WorkspaceID: uuid.New(), Email: "doc@example.com", Role: access.RoleDoctor,
		Token: "flaky-token", Status: "pending", ExpiresAt: time.Now().UTC().Add(time.Hour),
	})

	// A transient lookup failure must not be mistaken for "no membership":
	// that would mint a fresh row and burn the token on a bad read.
	lookupErr := errors.New("connection reset by peer")
	ms.lookupErr = lookupErr

	if _, err := svc.Accept(context.Background(), "flaky-token", uuid.New(), "doc@example.com"); !errors.Is(err, lookupErr) {
		t.Fatalf("err = %v, want the lookup error", err)
	}
	if len(ms.memberships) != 0 {
		t.Error("no membership should be created on a failed lookup")
	}
	if inv, _ := invRepo.GetByToken(context.Background(), "flaky-token"); inv.Status != "pending" {
		t.Errorf("invitation status = %q, want still pending", inv.Status)
	}
}

func TestRevokeInvitation(t *testing.T) {
	svc, _, _, _ := newTestService()
	inv, err := svc.Invite(context.Background(), uuid.New(), "doc@example.com", access.RoleDoctor, uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Revoke(context.Background(), inv.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Accept(context.Background(), inv.Token, uuid.New(), "doc@example.com"); !errors.Is(err, ErrInvitationUsed) {
		t.Errorf("revoked token should not be redeemable, err = %v", err)
	}
}

func TestInviteValidatesInput(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.Invite(context.Background(), uuid.New(), "not-an-email", access.RoleDoctor, uuid.New()); err == nil {
		t.Error("invalid email should be rejected")
	}
	if _, err := svc.Invite(context.Background(), uuid.New(), "doc@example.com", access.Role("superuser"), uuid.New()); err == nil {
		t.Error("unknown role should be rejected")
	}
}
