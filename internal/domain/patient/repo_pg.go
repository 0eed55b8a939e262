package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/db"
)

// =========== Patient Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, workspace_id, full_name, birth_date, gender, complaint, bed, status,
	created_by, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.FullName, &p.BirthDate, &p.Gender, &p.Complaint,
		&p.Bed, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, workspace_id, full_name, birth_date, gender, complaint, bed, status, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.WorkspaceID, p.FullName, p.BirthDate, p.Gender, p.Complaint, p.Bed, p.Status, p.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET full_name=$2, birth_date=$3, gender=$4, complaint=$5, bed=$6,
			status=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FullName, p.BirthDate, p.Gender, p.Complaint, p.Bed, p.Status)
	return err
}

func (r *repoPG) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, status Status, limit, offset int) ([]*Patient, int, error) {
	countQuery := `SELECT COUNT(*) FROM patients WHERE workspace_id = $1`
	query := `SELECT ` + patientCols + ` FROM patients WHERE workspace_id = $1`
	args := []interface{}{workspaceID}

	if status != "" {
		countQuery += ` AND status = $2`
		query += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// LookupWorkspace resolves a patient id to its owning workspace, mapping
// absence to access.ErrNotFound so the resolver can hide existence.
func (r *repoPG) LookupWorkspace(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	var wsID uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT workspace_id FROM patients WHERE id = $1`, patientID).Scan(&wsID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, access.ErrNotFound
	}
	return wsID, err
}

func (r *repoPG) AddStatusChange(ctx context.Context, ch *StatusChange) error {
	ch.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_status_history (id, patient_id, from_status, to_status, changed_by, changed_at, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ch.ID, ch.PatientID, ch.FromStatus, ch.ToStatus, ch.ChangedBy, ch.ChangedAt, ch.Note)
	return err
}

func (r *repoPG) StatusHistory(ctx context.Context, patientID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, from_status, to_status, changed_by, changed_at, note
		FROM patient_status_history WHERE patient_id = $1 ORDER BY changed_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StatusChange
	for rows.Next() {
		var ch StatusChange
		if err := rows.Scan(&ch.ID, &ch.PatientID, &ch.FromStatus, &ch.ToStatus,
			&ch.ChangedBy, &ch.ChangedAt, &ch.Note); err != nil {
			return nil, err
		}
		items = append(items, &ch)
	}
	return items, nil
}

// =========== Vitals Repository ===========

type vitalsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository { return &vitalsRepoPG{pool: pool} }

func (r *vitalsRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const vitalsCols = `id, patient_id, heart_rate, blood_pressure_sys, blood_pressure_dia,
	temperature, respiratory_rate, oxygen_saturation, pain_scale, note, recorded_by, recorded_at`

func (r *vitalsRepoPG) scan(row pgx.Row) (*VitalsEntry, error) {
	var v VitalsEntry
	err := row.Scan(&v.ID, &v.PatientID, &v.HeartRate, &v.BloodPressureSys, &v.BloodPressureDia,
		&v.Temperature, &v.RespiratoryRate, &v.OxygenSaturation, &v.PainScale, &v.Note,
		&v.RecordedBy, &v.RecordedAt)
	return &v, err
}

func (r *vitalsRepoPG) Create(ctx context.Context, v *VitalsEntry) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vitals_entries (id, patient_id, heart_rate, blood_pressure_sys, blood_pressure_dia,
			temperature, respiratory_rate, oxygen_saturation, pain_scale, note, recorded_by, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		v.ID, v.PatientID, v.HeartRate, v.BloodPressureSys, v.BloodPressureDia,
		v.Temperature, v.RespiratoryRate, v.OxygenSaturation, v.PainScale, v.Note,
		v.RecordedBy, v.RecordedAt)
	return err
}

func (r *vitalsRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM vitals_entries WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+vitalsCols+` FROM vitals_entries
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VitalsEntry
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, nil
}

func (r *vitalsRepoPG) Recent(ctx context.Context, patientID uuid.UUID, n int) ([]*VitalsEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+vitalsCols+` FROM vitals_entries
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2`, patientID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VitalsEntry
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}
