package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acilhq/acil/internal/platform/db"
)

// StorePG implements MembershipStore and PatientLocator against Postgres.
type StorePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) *StorePG {
	return &StorePG{pool: pool}
}

func (s *StorePG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

// ActiveMembership returns the single active membership row for the pair.
// Invited and disabled rows do not match the query at all, so they behave
// exactly like absence.
func (s *StorePG) ActiveMembership(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error) {
	var m Membership
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT workspace_id, user_id, role, status
		FROM workspace_members
		WHERE user_id = $1 AND workspace_id = $2 AND status = 'active'`,
		userID, workspaceID,
	).Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotAMember
		}
		return nil, err
	}
	return &m, nil
}

// PatientWorkspace resolves the workspace owning a patient.
func (s *StorePG) PatientWorkspace(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	var wsID uuid.UUID
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT workspace_id FROM patients WHERE id = $1`, patientID,
	).Scan(&wsID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return wsID, nil
}
