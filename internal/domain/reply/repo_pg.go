package reply

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/vaccinations/internal/platform/db"
)

// ErrNotFound is returned when no reply matches.
var ErrNotFound = errors.New("reply not found")

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

const replyCols = `id, created_at, patient_id, programme_id, session_id, respondent_name,
	respondent_relationship, decision, health_answers, refusal_reason, invalidated`

func (r *repoPG) scan(row pgx.Row) (*Reply, error) {
	var rp Reply
	var rel, decision string
	err := row.Scan(&rp.ID, &rp.CreatedAt, &rp.PatientID, &rp.ProgrammeID, &rp.SessionID,
		&rp.Respondent.Name, &rel, &decision, &rp.HealthAnswers, &rp.RefusalReason, &rp.Invalidated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rp.Respondent.Relationship = Relationship(rel)
	rp.Decision = Decision(decision)
	return &rp, nil
}

func (r *repoPG) Create(ctx context.Context, rp *Reply) error {
	rp.ID = uuid.New()
	answers := rp.HealthAnswers
	if answers == nil {
		answers = map[string]HealthAnswer{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consent_reply (id, created_at, patient_id, programme_id, session_id,
			respondent_name, respondent_relationship, decision, health_answers, refusal_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rp.ID, rp.CreatedAt, rp.PatientID, rp.ProgrammeID, rp.SessionID,
		rp.Respondent.Name, string(rp.Respondent.Relationship), string(rp.Decision),
		answers, rp.RefusalReason)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reply, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+replyCols+` FROM consent_reply WHERE id = $1`, id))
}

func (r *repoPG) ListByPatientSession(ctx context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID) ([]*Reply, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+replyCols+` FROM consent_reply
		WHERE patient_id = $1 AND programme_id = $2 AND session_id = $3
		ORDER BY created_at`, patientID, programmeID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Reply
	for rows.Next() {
		rp, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rp)
	}
	return items, rows.Err()
}

func (r *repoPG) MarkInvalidated(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE consent_reply SET invalidated = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
