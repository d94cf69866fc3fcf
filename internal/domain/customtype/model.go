// Package customtype manages hospital-defined workflow definitions: an
// ordered state chain, an owning department, and per-priority SLA offsets.
// Definitions are append-immutable once created; actions referencing them
// rely on the state order never changing.
package customtype

import (
	"time"

	"github.com/google/uuid"

	"github.com/clavis/clavis/internal/workflow"
)

// CustomActionType maps to the custom_action_type table.
type CustomActionType struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Department         string    `db:"department" json:"department"`
	States             []string  `db:"states" json:"states"`
	TerminalState      string    `db:"terminal_state" json:"terminal_state"`
	SLARoutineMinutes  int       `db:"sla_routine_minutes" json:"sla_routine_minutes"`
	SLAUrgentMinutes   int       `db:"sla_urgent_minutes" json:"sla_urgent_minutes"`
	SLACriticalMinutes int       `db:"sla_critical_minutes" json:"sla_critical_minutes"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// SLAMinutes adapts the stored offsets to the workflow package.
func (t *CustomActionType) SLAMinutes() workflow.SLAMinutes {
	return workflow.SLAMinutes{
		Routine:  t.SLARoutineMinutes,
		Urgent:   t.SLAUrgentMinutes,
		Critical: t.SLACriticalMinutes,
	}
}

// InitialState is the head of the ordered chain.
func (t *CustomActionType) InitialState() string {
	if len(t.States) == 0 {
		return ""
	}
	return t.States[0]
}
