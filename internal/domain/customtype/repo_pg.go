package customtype

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clavis/clavis/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const cols = `id, name, department, states, terminal_state,
	sla_routine_minutes, sla_urgent_minutes, sla_critical_minutes, created_at`

func scanType(row pgx.Row) (*CustomActionType, error) {
	var t CustomActionType
	var states []byte
	err := row.Scan(&t.ID, &t.Name, &t.Department, &states, &t.TerminalState,
		&t.SLARoutineMinutes, &t.SLAUrgentMinutes, &t.SLACriticalMinutes, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(states, &t.States); err != nil {
		return nil, fmt.Errorf("decode states for %s: %w", t.ID, err)
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *CustomActionType) error {
	t.ID = uuid.New()
	states, err := json.Marshal(t.States)
	if err != nil {
		return fmt.Errorf("encode states: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO custom_action_type (id, name, department, states, terminal_state,
			sla_routine_minutes, sla_urgent_minutes, sla_critical_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.Name, t.Department, states, t.TerminalState,
		t.SLARoutineMinutes, t.SLAUrgentMinutes, t.SLACriticalMinutes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CustomActionType, error) {
	t, err := scanType(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM custom_action_type WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*CustomActionType, error) {
	t, err := scanType(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM custom_action_type WHERE LOWER(name) = LOWER($1)`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*CustomActionType, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM custom_action_type`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM custom_action_type ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CustomActionType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}
