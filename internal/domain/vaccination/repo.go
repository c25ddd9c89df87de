package vaccination

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Vaccination) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error)
	Update(ctx context.Context, v *Vaccination) error
	// ListByPatient returns every record for the patient, optionally limited to
	// one programme when programmeID is not empty.
	ListByPatient(ctx context.Context, patientID uuid.UUID, programmeID string) ([]*Vaccination, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Vaccination, int, error)
}
