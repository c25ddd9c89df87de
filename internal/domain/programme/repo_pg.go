package programme

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/platform/db"
)

// ErrNotFound is returned when a programme or session does not exist.
var ErrNotFound = errors.New("not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Programme Repository ===========

type programmeRepoPG struct{ pool *pgxpool.Pool }

func NewProgrammeRepoPG(pool *pgxpool.Pool) ProgrammeRepository {
	return &programmeRepoPG{pool: pool}
}

const progCols = `id, name, vaccine_code, vaccine_display, sequence, immunocompromised_sequence,
	methods, year_groups, sync_to_registry, created_at, updated_at`

func scanProgramme(row pgx.Row) (*Programme, error) {
	var p Programme
	var methods []string
	err := row.Scan(&p.ID, &p.Name, &p.VaccineCode, &p.VaccineDisplay, &p.Sequence,
		&p.ImmunocompromisedSequence, &methods, &p.YearGroups, &p.SyncToRegistry,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Methods = lo.Map(methods, func(m string, _ int) Method { return Method(m) })
	return &p, nil
}

func methodStrings(ms []Method) []string {
	return lo.Map(ms, func(m Method, _ int) string { return string(m) })
}

func (r *programmeRepoPG) Create(ctx context.Context, p *Programme) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO programme (id, name, vaccine_code, vaccine_display, sequence,
			immunocompromised_sequence, methods, year_groups, sync_to_registry)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.VaccineCode, p.VaccineDisplay, p.Sequence,
		orEmpty(p.ImmunocompromisedSequence), methodStrings(p.Methods), orEmpty(p.YearGroups), p.SyncToRegistry,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *programmeRepoPG) GetByID(ctx context.Context, id string) (*Programme, error) {
	return scanProgramme(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+progCols+` FROM programme WHERE id = $1`, id))
}

func (r *programmeRepoPG) Update(ctx context.Context, p *Programme) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE programme SET name=$2, vaccine_code=$3, vaccine_display=$4, sequence=$5,
			immunocompromised_sequence=$6, methods=$7, year_groups=$8, sync_to_registry=$9,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.VaccineCode, p.VaccineDisplay, p.Sequence,
		orEmpty(p.ImmunocompromisedSequence), methodStrings(p.Methods), orEmpty(p.YearGroups), p.SyncToRegistry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *programmeRepoPG) List(ctx context.Context) ([]*Programme, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+progCols+` FROM programme ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Programme
	for rows.Next() {
		p, err := scanProgramme(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// =========== Session Repository ===========

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

const sessCols = `id, name, location, programme_ids, dates, open_at, registration_required,
	created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Name, &s.Location, &s.ProgrammeIDs, &s.Dates, &s.OpenAt,
		&s.RegistrationRequired, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *sessionRepoPG) loadRegister(ctx context.Context, s *Session) error {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT patient_id, attendance FROM session_register WHERE session_id = $1`, s.ID)
	if err != nil {
		return fmt.Errorf("load register: %w", err)
	}
	defer rows.Close()
	s.Register = make(map[uuid.UUID]Attendance)
	for rows.Next() {
		var pid uuid.UUID
		var a string
		if err := rows.Scan(&pid, &a); err != nil {
			return fmt.Errorf("scan register: %w", err)
		}
		s.Register[pid] = Attendance(a)
	}
	return rows.Err()
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO session (id, name, location, programme_ids, dates, open_at, registration_required)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Location, s.ProgrammeIDs, orEmpty(s.Dates), s.OpenAt, s.RegistrationRequired,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *sessionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := scanSession(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+sessCols+` FROM session WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadRegister(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepoPG) Update(ctx context.Context, s *Session) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE session SET name=$2, location=$3, programme_ids=$4, dates=$5, open_at=$6,
			registration_required=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Location, s.ProgrammeIDs, orEmpty(s.Dates), s.OpenAt, s.RegistrationRequired)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepoPG) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM session`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+sessCols+` FROM session ORDER BY dates[1] NULLS LAST LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *sessionRepoPG) SetAttendance(ctx context.Context, sessionID, patientID uuid.UUID, a Attendance) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO session_register (session_id, patient_id, attendance)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, patient_id) DO UPDATE SET attendance = EXCLUDED.attendance, recorded_at = NOW()`,
		sessionID, patientID, string(a))
	return err
}

// orEmpty keeps NOT NULL array columns from receiving NULL.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
