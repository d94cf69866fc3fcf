package action

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clavis/clavis/internal/workflow"
)

// Repository persists clinical actions. Implementations map a missing row
// to ErrNotFound.
type Repository interface {
	Create(ctx context.Context, a *ClinicalAction) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalAction, error)
	// UpdateStateCAS advances current_state only if the row still holds
	// prevState, returning false when a concurrent transition won.
	UpdateStateCAS(ctx context.Context, id uuid.UUID, prevState, newState string) (bool, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, title, notes string, assigneeID *string) error
	UpdatePriority(ctx context.Context, id uuid.UUID, priority workflow.Priority, deadline *time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalAction, error)
	// ListAll returns every action; queue membership is derived in the
	// service from routing, not from the stored department column.
	ListAll(ctx context.Context) ([]*ClinicalAction, error)
	ListWithDeadlines(ctx context.Context) ([]*ClinicalAction, error)
}

// EventRepository persists the append-only transition trail.
type EventRepository interface {
	Append(ctx context.Context, e *ActionEvent) error
	ListByAction(ctx context.Context, actionID uuid.UUID) ([]*ActionEvent, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ActionEvent, error)
}

// PatientDirectory is the read-only contract against the patient
// collaborator: existence and discharge status gate creation and
// transitions, nothing else is consulted.
type PatientDirectory interface {
	Exists(ctx context.Context, patientID uuid.UUID) (bool, error)
	IsDischarged(ctx context.Context, patientID uuid.UUID) (bool, error)
}
