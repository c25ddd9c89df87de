package eventlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/vaccinations/internal/platform/db"
)

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

const eventCols = `id, patient_id, created_at, created_by, kind, name, note, outcome,
	programme_ids, session_id, seq`

func (r *repoPG) scan(row pgx.Row) (*Event, error) {
	var e Event
	var kind string
	err := row.Scan(&e.ID, &e.PatientID, &e.CreatedAt, &e.CreatedBy, &kind, &e.Name,
		&e.Note, &e.Outcome, &e.ProgrammeIDs, &e.SessionID, &e.Seq)
	if err != nil {
		return nil, err
	}
	e.Kind = Kind(kind)
	return &e, nil
}

func (r *repoPG) Append(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_event (id, patient_id, created_at, created_by, kind, name, note,
			outcome, programme_ids, session_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING seq`,
		e.ID, e.PatientID, e.CreatedAt, e.CreatedBy, string(e.Kind), e.Name, e.Note,
		e.Outcome, e.ProgrammeIDs, e.SessionID,
	).Scan(&e.Seq)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+eventCols+` FROM patient_event WHERE patient_id = $1 ORDER BY created_at, seq`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) ListPatientsInSession(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id FROM patient_event
		WHERE kind = 'select' AND session_id = $1
		GROUP BY patient_id
		ORDER BY MIN(seq)`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
