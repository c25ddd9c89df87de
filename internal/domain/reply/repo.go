package reply

import (
	"context"

	"github.com/google/uuid"
)

// Repository never deletes replies; withdrawn ones are flagged invalidated.
type Repository interface {
	Create(ctx context.Context, r *Reply) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reply, error)
	ListByPatientSession(ctx context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID) ([]*Reply, error)
	MarkInvalidated(ctx context.Context, id uuid.UUID) error
}
