package vaccination

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/platform/db"
)

// ErrNotFound is returned when no vaccination record matches.
var ErrNotFound = errors.New("vaccination not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const vaccCols = `id, patient_id, programme_id, session_id, outcome, dose_sequence, method,
	site, batch_id, vaccine_id, note, created_by, version_id, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Vaccination, error) {
	var v Vaccination
	var outcome string
	var method *string
	err := row.Scan(&v.ID, &v.PatientID, &v.ProgrammeID, &v.SessionID, &outcome, &v.DoseSequence,
		&method, &v.Site, &v.BatchID, &v.VaccineID, &v.Note, &v.CreatedBy, &v.VersionID,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Outcome = Outcome(outcome)
	if method != nil {
		m := programme.Method(*method)
		v.Method = &m
	}
	return &v, nil
}

func methodArg(m *programme.Method) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

func (r *repoPG) Create(ctx context.Context, v *Vaccination) error {
	v.ID = uuid.New()
	v.VersionID = 1
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vaccination (id, patient_id, programme_id, session_id, outcome, dose_sequence,
			method, site, batch_id, vaccine_id, note, created_by, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		v.ID, v.PatientID, v.ProgrammeID, v.SessionID, string(v.Outcome), v.DoseSequence,
		methodArg(v.Method), v.Site, v.BatchID, v.VaccineID, v.Note, v.CreatedBy, v.VersionID,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+vaccCols+` FROM vaccination WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, v *Vaccination) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE vaccination SET outcome=$2, dose_sequence=$3, method=$4, site=$5, batch_id=$6,
			vaccine_id=$7, note=$8, version_id = version_id + 1, updated_at=NOW()
		WHERE id = $1
		RETURNING version_id, updated_at`,
		v.ID, string(v.Outcome), v.DoseSequence, methodArg(v.Method), v.Site, v.BatchID,
		v.VaccineID, v.Note,
	).Scan(&v.VersionID, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, programmeID string) ([]*Vaccination, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+vaccCols+` FROM vaccination
		WHERE patient_id = $1 AND ($2 = '' OR programme_id = $2)
		ORDER BY created_at`, patientID, programmeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Vaccination
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccination WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+vaccCols+` FROM vaccination WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Vaccination
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}
