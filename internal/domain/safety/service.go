package safety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clavis/clavis/internal/workflow"
)

// ActionView is the read-only slice of a clinical action the safety engine
// needs. The action domain adapts its rows into this shape so the engine
// stays free of storage concerns.
type ActionView struct {
	ID             uuid.UUID
	Kind           workflow.ActionKind
	IsCustom       bool
	CustomTerminal string
	State          string
	Priority       workflow.Priority
	Department     string
	Deadline       *time.Time
}

// Routed adapts the view for the router and SLA rules.
func (v ActionView) Routed() workflow.RoutedAction {
	return workflow.RoutedAction{
		Kind:       v.Kind,
		IsCustom:   v.IsCustom,
		State:      v.State,
		Department: v.Department,
	}
}

// Terminal reports whether the action has completed its chain.
func (v ActionView) Terminal() bool {
	if v.IsCustom {
		return v.CustomTerminal != "" && v.State == v.CustomTerminal
	}
	return workflow.IsTerminal(v.Kind, v.State)
}

// ActionSource supplies patient actions for dependency checks and risk
// scoring.
type ActionSource interface {
	PatientActionViews(ctx context.Context, patientID uuid.UUID) ([]ActionView, error)
}

// Broadcaster is the slice of the websocket hub the safety engine uses.
type Broadcaster interface {
	BroadcastPatient(patientID uuid.UUID, payload interface{})
	BroadcastStatus(payload interface{})
}

// Violation is a failed dependency check.
type Violation struct {
	EventType string
	Severity  Severity
	Message   string
}

// DependencyRule is a pure cross-action constraint evaluated before a
// transition is written. New rules compose by appending to the service's
// rule list.
type DependencyRule func(a ActionView, newState string, patientActions []ActionView) *Violation

// MedicationDependencyRule blocks administering a medication while any of
// the patient's diagnostic actions is not yet terminal. Deliberately scoped
// to every diagnostic for the patient, a coarse safety net.
func MedicationDependencyRule(a ActionView, newState string, patientActions []ActionView) *Violation {
	if newState != "ADMINISTERED" || a.IsCustom || a.Kind != workflow.KindMedication {
		return nil
	}

	pending := 0
	for _, other := range patientActions {
		if other.IsCustom || other.Kind != workflow.KindDiagnostic {
			continue
		}
		if !workflow.IsTerminal(workflow.KindDiagnostic, other.State) {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}
	return &Violation{
		EventType: EventMedicationDependency,
		Severity:  SeverityCritical,
		Message:   fmt.Sprintf("cannot administer medication before diagnostic actions are COMPLETED (%d pending)", pending),
	}
}

// Service records the safety trail and answers read-side aggregates.
type Service struct {
	repo    Repository
	actions ActionSource
	hub     Broadcaster
	rules   []DependencyRule
	log     zerolog.Logger
}

func NewService(repo Repository, actions ActionSource, hub Broadcaster, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		actions: actions,
		hub:     hub,
		rules:   []DependencyRule{MedicationDependencyRule},
		log:     log,
	}
}

// RecordInput describes one safety event to append.
type RecordInput struct {
	PatientID   *uuid.UUID
	ActionID    *uuid.UUID
	EventType   string
	Severity    Severity
	Description string
	Blocked     bool
}

// Record appends a safety event and broadcasts a safety_alert to the
// patient and global status channels. The trail must never block the caller:
// write failures are logged and swallowed.
func (s *Service) Record(ctx context.Context, in RecordInput) *SafetyEvent {
	event := &SafetyEvent{
		PatientID:   in.PatientID,
		ActionID:    in.ActionID,
		EventType:   strings.ToUpper(strings.TrimSpace(in.EventType)),
		Severity:    in.Severity,
		Description: strings.TrimSpace(in.Description),
		Blocked:     in.Blocked,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		s.log.Error().Err(err).Str("event_type", event.EventType).Msg("safety: record event")
		return nil
	}

	if in.PatientID != nil {
		payload := map[string]interface{}{
			"event":       "safety_alert",
			"patient_id":  in.PatientID.String(),
			"severity":    event.Severity,
			"description": event.Description,
			"blocked":     event.Blocked,
		}
		s.hub.BroadcastPatient(*in.PatientID, payload)
		s.hub.BroadcastStatus(payload)
	}
	return event
}

// CheckDependencies runs every composed rule and returns the first
// violation, or nil.
func (s *Service) CheckDependencies(ctx context.Context, a ActionView, newState string, patientID uuid.UUID) (*Violation, error) {
	patientActions, err := s.actions.PatientActionViews(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, rule := range s.rules {
		if v := rule(a, newState, patientActions); v != nil {
			return v, nil
		}
	}
	return nil, nil
}

// PatientRisk computes the composite risk score: overdue actions weigh 2,
// unresolved CRITICAL actions 3, each active department beyond the first 1,
// and blocked safety events in the trailing 24 hours 5.
func (s *Service) PatientRisk(ctx context.Context, patientID uuid.UUID) (*Risk, error) {
	actions, err := s.actions.PatientActionViews(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overdue := 0
	criticalUnresolved := 0
	activeDepartments := map[string]struct{}{}

	for _, a := range actions {
		terminal := a.Terminal()
		if workflow.IsOverdue(a.Routed(), a.CustomTerminal, a.Deadline, now) {
			overdue++
		}
		if a.Priority == workflow.PriorityCritical && !terminal {
			criticalUnresolved++
		}
		if !terminal {
			if dept := workflow.PrimaryQueueDepartment(a.Routed(), a.CustomTerminal); dept != "" {
				activeDepartments[strings.ToLower(strings.TrimSpace(dept))] = struct{}{}
			}
		}
	}

	crossDepartment := len(activeDepartments) - 1
	if crossDepartment < 0 {
		crossDepartment = 0
	}

	blockedRecent, err := s.repo.CountBlockedSince(ctx, patientID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	score := overdue*2 + criticalUnresolved*3 + crossDepartment + blockedRecent*5

	level := RiskHigh
	switch {
	case score <= 2:
		level = RiskLow
	case score <= 6:
		level = RiskMedium
	}
	return &Risk{Score: score, Level: level}, nil
}

// DischargeViolations lists the reasons a patient cannot safely be
// discharged yet. Read-only; callers decide what to do with the answer.
func (s *Service) DischargeViolations(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	actions, err := s.actions.PatientActionViews(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	nonTerminal, criticalUnresolved, overdue := 0, 0, 0
	for _, a := range actions {
		terminal := a.Terminal()
		if !terminal {
			nonTerminal++
		}
		if a.Priority == workflow.PriorityCritical && !terminal {
			criticalUnresolved++
		}
		if workflow.IsOverdue(a.Routed(), a.CustomTerminal, a.Deadline, now) {
			overdue++
		}
	}

	var violations []string
	if nonTerminal > 0 {
		violations = append(violations, fmt.Sprintf("active actions pending (%d)", nonTerminal))
	}
	if criticalUnresolved > 0 {
		violations = append(violations, fmt.Sprintf("unresolved CRITICAL actions (%d)", criticalUnresolved))
	}
	if overdue > 0 {
		violations = append(violations, fmt.Sprintf("overdue actions present (%d)", overdue))
	}
	return violations, nil
}

// ListPatientEvents returns the patient's safety trail, newest first.
func (s *Service) ListPatientEvents(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*SafetyEvent, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
