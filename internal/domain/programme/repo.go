package programme

import (
	"context"

	"github.com/google/uuid"
)

type ProgrammeRepository interface {
	Create(ctx context.Context, p *Programme) error
	GetByID(ctx context.Context, id string) (*Programme, error)
	Update(ctx context.Context, p *Programme) error
	List(ctx context.Context) ([]*Programme, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, s *Session) error
	List(ctx context.Context, limit, offset int) ([]*Session, int, error)
	SetAttendance(ctx context.Context, sessionID, patientID uuid.UUID, a Attendance) error
}
