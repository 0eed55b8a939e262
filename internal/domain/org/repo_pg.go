package org

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acilhq/acil/internal/platform/db"
)

// =========== Workspace Repository ===========

type workspaceRepoPG struct{ pool *pgxpool.Pool }

func NewWorkspaceRepoPG(pool *pgxpool.Pool) WorkspaceRepository { return &workspaceRepoPG{pool: pool} }

func (r *workspaceRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const workspaceCols = `id, name, description, created_by, created_at, updated_at`

func (r *workspaceRepoPG) scan(row pgx.Row) (*Workspace, error) {
	var w Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

func (r *workspaceRepoPG) Create(ctx context.Context, w *Workspace) error {
	w.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workspaces (id, name, description, created_by)
		VALUES ($1,$2,$3,$4)`,
		w.ID, w.Name, w.Description, w.CreatedBy)
	return err
}

func (r *workspaceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+workspaceCols+` FROM workspaces WHERE id = $1`, id))
}

func (r *workspaceRepoPG) Update(ctx context.Context, w *Workspace) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE workspaces SET name=$2, description=$3, updated_at=NOW() WHERE id = $1`,
		w.ID, w.Name, w.Description)
	return err
}

func (r *workspaceRepoPG) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Workspace, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND m.status = 'active'`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT w.id, w.name, w.description, w.created_by, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY w.created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Workspace
	for rows.Next() {
		w, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, nil
}

// =========== Membership Repository ===========

type membershipRepoPG struct{ pool *pgxpool.Pool }

func NewMembershipRepoPG(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{pool: pool}
}

func (r *membershipRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const membershipCols = `id, workspace_id, user_id, email, role, status, created_at, updated_at`

func (r *membershipRepoPG) scan(row pgx.Row) (*Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Email, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *membershipRepoPG) Create(ctx context.Context, m *Membership) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workspace_members (id, workspace_id, user_id, email, role, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.WorkspaceID, m.UserID, m.Email, m.Role, m.Status)
	return err
}

func (r *membershipRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Membership, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+membershipCols+` FROM workspace_members WHERE id = $1`, id))
}

func (r *membershipRepoPG) GetByUserAndWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+membershipCols+` FROM workspace_members
		WHERE user_id = $1 AND workspace_id = $2`, userID, workspaceID))
}

func (r *membershipRepoPG) Update(ctx context.Context, m *Membership) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE workspace_members SET role=$2, status=$3, updated_at=NOW() WHERE id = $1`,
		m.ID, m.Role, m.Status)
	return err
}

func (r *membershipRepoPG) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM workspace_members WHERE workspace_id = $1`, workspaceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+membershipCols+` FROM workspace_members
		WHERE workspace_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Membership
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

// =========== Invitation Repository ===========

type invitationRepoPG struct{ pool *pgxpool.Pool }

func NewInvitationRepoPG(pool *pgxpool.Pool) InvitationRepository {
	return &invitationRepoPG{pool: pool}
}

func (r *invitationRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const invitationCols = `id, workspace_id, email, role, token, invited_by, status, expires_at, created_at`

func (r *invitationRepoPG) scan(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	return &inv, err
}

func (r *invitationRepoPG) Create(ctx context.Context, inv *Invitation) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workspace_invitations (id, workspace_id, email, role, token, invited_by, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		inv.ID, inv.WorkspaceID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.Status, inv.ExpiresAt)
	return err
}

func (r *invitationRepoPG) GetByToken(ctx context.Context, token string) (*Invitation, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invitationCols+` FROM workspace_invitations WHERE token = $1`, token))
}

func (r *invitationRepoPG) Update(ctx context.Context, inv *Invitation) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE workspace_invitations SET status=$2 WHERE id = $1`, inv.ID, inv.Status)
	return err
}

func (r *invitationRepoPG) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Invitation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM workspace_invitations WHERE workspace_id = $1`, workspaceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+invitationCols+` FROM workspace_invitations
		WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invitation
	for rows.Next() {
		inv, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, nil
}
