package handoff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acilhq/acil/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const handoffCols = `id, workspace_id, author_id, shift, situation, background, assessment,
	recommendation, patient_count, acknowledged_by, acknowledged_at, created_at`

func (r *repoPG) scan(row pgx.Row) (*Handoff, error) {
	var h Handoff
	err := row.Scan(&h.ID, &h.WorkspaceID, &h.AuthorID, &h.Shift, &h.Situation, &h.Background,
		&h.Assessment, &h.Recommendation, &h.PatientCount, &h.AcknowledgedBy, &h.AcknowledgedAt,
		&h.CreatedAt)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *Handoff) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO handoffs (id, workspace_id, author_id, shift, situation, background,
			assessment, recommendation, patient_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.WorkspaceID, h.AuthorID, h.Shift, h.Situation, h.Background,
		h.Assessment, h.Recommendation, h.PatientCount)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+handoffCols+` FROM handoffs WHERE id = $1`, id))
}

// SetAcknowledged records the first acknowledgement. The IS NULL guard makes
// concurrent attempts race on the same row; the loser updates nothing and
// gets ErrAlreadyAcknowledged.
func (r *repoPG) SetAcknowledged(ctx context.Context, h *Handoff) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE handoffs SET acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1 AND acknowledged_by IS NULL`,
		h.ID, h.AcknowledgedBy, h.AcknowledgedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyAcknowledged
	}
	return nil
}

func (r *repoPG) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, shift Shift, limit, offset int) ([]*Handoff, int, error) {
	where := `WHERE workspace_id = $1`
	args := []interface{}{workspaceID}
	if shift != "" {
		where += ` AND shift = $2`
		args = append(args, shift)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM handoffs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+handoffCols+` FROM handoffs `+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Handoff
	for rows.Next() {
		h, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, nil
}
