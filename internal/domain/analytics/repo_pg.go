package analytics

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clavis/clavis/internal/domain/action"
	"github.com/clavis/clavis/internal/domain/customtype"
	"github.com/clavis/clavis/internal/workflow"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) ListActions(ctx context.Context) ([]*action.ClinicalAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, action_type, custom_type_id, title, notes,
			current_state, priority, department, sla_deadline, assignee_id,
			created_by, created_at, updated_at
		FROM clinical_action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*action.ClinicalAction
	for rows.Next() {
		var a action.ClinicalAction
		var kind string
		if err := rows.Scan(&a.ID, &a.PatientID, &kind, &a.CustomTypeID, &a.Title, &a.Notes,
			&a.CurrentState, &a.Priority, &a.Department, &a.SLADeadline, &a.AssigneeID,
			&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Kind = workflow.ActionKind(kind)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *repoPG) ListEvents(ctx context.Context) ([]*action.ActionEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, action_id, actor_id, actor_role, previous_state, new_state, notes, created_at
		FROM action_event ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*action.ActionEvent
	for rows.Next() {
		var e action.ActionEvent
		if err := rows.Scan(&e.ID, &e.ActionID, &e.ActorID, &e.ActorRole,
			&e.PreviousState, &e.NewState, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *repoPG) ListCustomTypes(ctx context.Context) ([]*customtype.CustomActionType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, department, states, terminal_state,
			sla_routine_minutes, sla_urgent_minutes, sla_critical_minutes, created_at
		FROM custom_action_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*customtype.CustomActionType
	for rows.Next() {
		t, err := scanCustomType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanCustomType(row pgx.Row) (*customtype.CustomActionType, error) {
	var t customtype.CustomActionType
	var states []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Department, &states, &t.TerminalState,
		&t.SLARoutineMinutes, &t.SLAUrgentMinutes, &t.SLACriticalMinutes, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(states, &t.States); err != nil {
		return nil, err
	}
	return &t, nil
}
