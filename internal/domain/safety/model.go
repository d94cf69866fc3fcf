// Package safety is the workflow engine's safety trail: it authorizes
// transitions against the role table, enforces cross-action dependency
// constraints, records immutable blocking/allow audit rows, and computes the
// composite per-patient risk score.
package safety

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades a safety event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event type tags. Stored uppercase.
const (
	EventUnsafeTransition        = "UNSAFE_TRANSITION"
	EventRoleViolation           = "ROLE_VIOLATION"
	EventMedicationDependency    = "MEDICATION_DEPENDENCY"
	EventDrugInteraction         = "DRUG_INTERACTION"
	EventUnauthorizedQueueAccess = "UNAUTHORIZED_QUEUE_ACCESS"
)

// SafetyEvent maps to the safety_event table. Rows are append-only and never
// edited; they are the auditable record of every blocked or flagged attempt.
type SafetyEvent struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	ActionID    *uuid.UUID `db:"action_id" json:"action_id,omitempty"`
	EventType   string     `db:"event_type" json:"event_type"`
	Severity    Severity   `db:"severity" json:"severity"`
	Description string     `db:"description" json:"description"`
	Blocked     bool       `db:"blocked" json:"blocked"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// RiskLevel buckets a patient's composite risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Risk is the read-side per-patient risk aggregate.
type Risk struct {
	Score int       `json:"score"`
	Level RiskLevel `json:"level"`
}
