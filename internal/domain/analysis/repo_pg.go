package analysis

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

const analysisCols = `id, patient_id, requested_by, provider, model, prompt, result,
	input_tokens, output_tokens, created_at`

func (r *repoPG) scan(row pgx.Row) (*AIAnalysis, error) {
	var a AIAnalysis
	err := row.Scan(&a.ID, &a.PatientID, &a.RequestedBy, &a.Provider, &a.Model, &a.Prompt,
		&a.Result, &a.InputTokens, &a.OutputTokens, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *AIAnalysis) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ai_analyses (id, patient_id, requested_by, provider, model, prompt, result,
			input_tokens, output_tokens)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.PatientID, a.RequestedBy, a.Provider, a.Model, a.Prompt, a.Result,
		a.InputTokens, a.OutputTokens)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AIAnalysis, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+analysisCols+` FROM ai_analyses WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AIAnalysis, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ai_analyses WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+analysisCols+` FROM ai_analyses
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AIAnalysis
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}
