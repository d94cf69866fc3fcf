package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the DDL for the workflow engine's tables. Statements are
// idempotent so `clavis-server migrate` can run repeatedly.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patient (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		age INT NOT NULL DEFAULT 0,
		gender TEXT NOT NULL DEFAULT '',
		discharged BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS custom_action_type (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL,
		states JSONB NOT NULL,
		terminal_state TEXT NOT NULL,
		sla_routine_minutes INT NOT NULL DEFAULT 120,
		sla_urgent_minutes INT NOT NULL DEFAULT 30,
		sla_critical_minutes INT NOT NULL DEFAULT 10,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS custom_action_type_name_key
		ON custom_action_type (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS clinical_action (
		id UUID PRIMARY KEY,
		patient_id UUID NOT NULL REFERENCES patient(id),
		action_type TEXT NOT NULL DEFAULT '',
		custom_type_id UUID REFERENCES custom_action_type(id),
		title TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		current_state TEXT NOT NULL,
		priority TEXT NOT NULL,
		department TEXT NOT NULL,
		sla_deadline TIMESTAMPTZ,
		assignee_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS clinical_action_patient_idx ON clinical_action (patient_id)`,
	`CREATE INDEX IF NOT EXISTS clinical_action_department_idx ON clinical_action (LOWER(department))`,
	`CREATE TABLE IF NOT EXISTS action_event (
		id UUID PRIMARY KEY,
		action_id UUID NOT NULL REFERENCES clinical_action(id),
		actor_id TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		previous_state TEXT NOT NULL DEFAULT '',
		new_state TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS action_event_action_idx ON action_event (action_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS safety_event (
		id UUID PRIMARY KEY,
		patient_id UUID,
		action_id UUID,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		blocked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS safety_event_patient_idx ON safety_event (patient_id, created_at)`,
}

// Migrate applies the embedded schema. Safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
