package action

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clavis/clavis/internal/platform/db"
	"github.com/clavis/clavis/internal/workflow"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== ClinicalAction repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const actionCols = `id, patient_id, action_type, custom_type_id, title, notes,
	current_state, priority, department, sla_deadline, assignee_id,
	created_by, created_at, updated_at`

func scanAction(row pgx.Row) (*ClinicalAction, error) {
	var a ClinicalAction
	var kind string
	err := row.Scan(&a.ID, &a.PatientID, &kind, &a.CustomTypeID, &a.Title, &a.Notes,
		&a.CurrentState, &a.Priority, &a.Department, &a.SLADeadline, &a.AssigneeID,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Kind = workflow.ActionKind(kind)
	return &a, nil
}

func scanActions(rows pgx.Rows) ([]*ClinicalAction, error) {
	defer rows.Close()
	var out []*ClinicalAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, a *ClinicalAction) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO clinical_action (id, patient_id, action_type, custom_type_id, title, notes,
			current_state, priority, department, sla_deadline, assignee_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.PatientID, string(a.Kind), a.CustomTypeID, a.Title, a.Notes,
		a.CurrentState, a.Priority, a.Department, a.SLADeadline, a.AssigneeID, a.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalAction, error) {
	return scanAction(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+actionCols+` FROM clinical_action WHERE id = $1`, id))
}

func (r *repoPG) UpdateStateCAS(ctx context.Context, id uuid.UUID, prevState, newState string) (bool, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE clinical_action SET current_state = $3, updated_at = NOW()
		WHERE id = $1 AND current_state = $2`,
		id, prevState, newState)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) UpdateDetails(ctx context.Context, id uuid.UUID, title, notes string, assigneeID *string) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE clinical_action SET title = $2, notes = $3, assignee_id = $4, updated_at = NOW()
		WHERE id = $1`,
		id, title, notes, assigneeID)
	return err
}

func (r *repoPG) UpdatePriority(ctx context.Context, id uuid.UUID, priority workflow.Priority, deadline *time.Time) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE clinical_action SET priority = $2, sla_deadline = $3, updated_at = NOW()
		WHERE id = $1`,
		id, priority, deadline)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalAction, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+actionCols+` FROM clinical_action WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	return scanActions(rows)
}

func (r *repoPG) ListAll(ctx context.Context) ([]*ClinicalAction, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+actionCols+` FROM clinical_action ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return scanActions(rows)
}

func (r *repoPG) ListWithDeadlines(ctx context.Context) ([]*ClinicalAction, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+actionCols+` FROM clinical_action WHERE sla_deadline IS NOT NULL ORDER BY sla_deadline`)
	if err != nil {
		return nil, err
	}
	return scanActions(rows)
}

// =========== ActionEvent repository ===========

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{pool: pool}
}

const eventCols = `id, action_id, actor_id, actor_role, previous_state, new_state, notes, created_at`

func scanEvents(rows pgx.Rows) ([]*ActionEvent, error) {
	defer rows.Close()
	var out []*ActionEvent
	for rows.Next() {
		var e ActionEvent
		if err := rows.Scan(&e.ID, &e.ActionID, &e.ActorID, &e.ActorRole,
			&e.PreviousState, &e.NewState, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *eventRepoPG) Append(ctx context.Context, e *ActionEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO action_event (id, action_id, actor_id, actor_role, previous_state, new_state, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.ActionID, e.ActorID, e.ActorRole, e.PreviousState, e.NewState, e.Notes)
	return err
}

func (r *eventRepoPG) ListByAction(ctx context.Context, actionID uuid.UUID) ([]*ActionEvent, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+eventCols+` FROM action_event WHERE action_id = $1 ORDER BY created_at`, actionID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r *eventRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ActionEvent, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT e.id, e.action_id, e.actor_id, e.actor_role, e.previous_state, e.new_state, e.notes, e.created_at
		FROM action_event e
		JOIN clinical_action a ON a.id = e.action_id
		WHERE a.patient_id = $1
		ORDER BY e.created_at`, patientID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// =========== Patient directory ===========

type patientDirPG struct{ pool *pgxpool.Pool }

// NewPatientDirPG reads the patient table maintained by the external
// patient service (seeded locally in development).
func NewPatientDirPG(pool *pgxpool.Pool) PatientDirectory {
	return &patientDirPG{pool: pool}
}

func (r *patientDirPG) Exists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1)`, patientID).Scan(&exists)
	return exists, err
}

func (r *patientDirPG) IsDischarged(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var discharged bool
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT discharged FROM patient WHERE id = $1`, patientID).Scan(&discharged)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	return discharged, err
}
