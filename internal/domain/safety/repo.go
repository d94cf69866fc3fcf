package safety

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *SafetyEvent) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*SafetyEvent, int, error)
	CountBlockedSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int, error)
}
