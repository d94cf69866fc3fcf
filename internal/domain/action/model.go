// Package action implements the clinical action lifecycle: creation with
// department routing and SLA deadlines, the guarded state-transition
// protocol, department queues, escalations, and the append-only event trail.
package action

import (
	"time"

	"github.com/google/uuid"

	"github.com/clavis/clavis/internal/workflow"
)

// ClinicalAction maps to the clinical_action table. Exactly one of Kind
// and CustomTypeID is set; CurrentState always equals the new_state of the
// action's most recent ActionEvent.
type ClinicalAction struct {
	ID           uuid.UUID           `db:"id" json:"id"`
	PatientID    uuid.UUID           `db:"patient_id" json:"patient_id"`
	Kind         workflow.ActionKind `db:"action_type" json:"action_type,omitempty"`
	CustomTypeID *uuid.UUID          `db:"custom_type_id" json:"custom_type_id,omitempty"`
	Title        string              `db:"title" json:"title"`
	Notes        string              `db:"notes" json:"notes"`
	CurrentState string              `db:"current_state" json:"current_state"`
	Priority     workflow.Priority   `db:"priority" json:"priority"`
	Department   string              `db:"department" json:"department"`
	SLADeadline  *time.Time          `db:"sla_deadline" json:"sla_deadline,omitempty"`
	AssigneeID   *string             `db:"assignee_id" json:"assignee_id,omitempty"`
	CreatedBy    string              `db:"created_by" json:"created_by"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

func (a *ClinicalAction) IsCustom() bool { return a.CustomTypeID != nil }

// Routed projects the action for the department router and SLA checks.
func (a *ClinicalAction) Routed() workflow.RoutedAction {
	return workflow.RoutedAction{
		Kind:       a.Kind,
		IsCustom:   a.IsCustom(),
		State:      a.CurrentState,
		Department: a.Department,
	}
}

// ActionEvent is one immutable row of the state-transition audit trail.
// PreviousState is empty only for the creation event. ActorRole is the
// actor's role at the time of the transition, captured by value.
type ActionEvent struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ActionID      uuid.UUID `db:"action_id" json:"action_id"`
	ActorID       string    `db:"actor_id" json:"actor_id"`
	ActorRole     string    `db:"actor_role" json:"actor_role"`
	PreviousState string    `db:"previous_state" json:"previous_state"`
	NewState      string    `db:"new_state" json:"new_state"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Actor identifies the requesting user for a guarded operation.
type Actor struct {
	ID   string
	Role workflow.Role
}

// TimelineEntry is one event joined with its action's display fields,
// used for the per-patient chronological view.
type TimelineEntry struct {
	Event       *ActionEvent `json:"event"`
	ActionID    uuid.UUID    `json:"action_id"`
	ActionLabel string       `json:"action_label"`
	Department  string       `json:"department"`
}
