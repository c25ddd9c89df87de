package eventlog

import (
	"context"

	"github.com/google/uuid"
)

// Repository is append-only: events are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Event, error)
	ListPatientsInSession(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}

// Appender is the write side other packages use to record their own events.
type Appender interface {
	Append(ctx context.Context, e *Event) error
}
