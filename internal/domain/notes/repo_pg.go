package notes

import (
	"context"

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

const noteCols = `id, workspace_id, patient_id, author_id, body, color, pinned, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.WorkspaceID, &n.PatientID, &n.AuthorID, &n.Body, &n.Color,
		&n.Pinned, &n.CreatedAt, &n.UpdatedAt)
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO sticky_notes (id, workspace_id, patient_id, author_id, body, color, pinned)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.ID, n.WorkspaceID, n.PatientID, n.AuthorID, n.Body, n.Color, n.Pinned)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM sticky_notes WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, n *Note) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE sticky_notes SET body=$2, color=$3, pinned=$4, updated_at=NOW() WHERE id = $1`,
		n.ID, n.Body, n.Color, n.Pinned)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM sticky_notes WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sticky_notes WHERE workspace_id = $1`, workspaceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+noteCols+` FROM sticky_notes
		WHERE workspace_id = $1 ORDER BY pinned DESC, created_at DESC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		n, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, nil
}
