package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clavis/clavis/internal/domain/customtype"
	"github.com/clavis/clavis/internal/domain/safety"
	"github.com/clavis/clavis/internal/platform/db"
	"github.com/clavis/clavis/internal/workflow"
)

// Hub fans events out to the three subscriber partitions. Delivery is
// best-effort; none of these calls may fail the triggering operation.
type Hub interface {
	BroadcastPatient(patientID uuid.UUID, payload interface{})
	BroadcastDepartment(department string, payload interface{})
	BroadcastStatus(payload interface{})
}

type Service struct {
	inTx     func(ctx context.Context, fn func(context.Context) error) error
	repo     Repository
	events   EventRepository
	patients PatientDirectory
	types    *customtype.Service
	views    *ViewSource
	safety   *safety.Service
	hub      Hub
	log      zerolog.Logger
}

func NewService(pool *pgxpool.Pool, repo Repository, events EventRepository,
	patients PatientDirectory, types *customtype.Service, views *ViewSource,
	safetySvc *safety.Service, hub Hub, log zerolog.Logger) *Service {
	inTx := func(ctx context.Context, fn func(context.Context) error) error {
		if pool == nil {
			return fn(ctx)
		}
		return db.WithTx(ctx, pool, fn)
	}
	return &Service{
		inTx:     inTx,
		repo:     repo,
		events:   events,
		patients: patients,
		types:    types,
		views:    views,
		safety:   safetySvc,
		hub:      hub,
		log:      log,
	}
}

// CreateInput carries everything needed to open a new action. Exactly one
// of Kind and CustomTypeID must be set.
type CreateInput struct {
	PatientID    uuid.UUID
	Kind         string
	CustomTypeID *uuid.UUID
	Priority     string
	Title        string
	Notes        string
	Department   string
	AssigneeID   *string
	Actor        Actor
}

// Create opens an action in its kind's initial state, routes it to a
// department, stamps the SLA deadline, and appends the synthetic creation
// event in the same transaction. For medications it additionally checks the
// patient's other medication titles for known drug interactions; matches
// are returned as warnings and recorded as non-blocking safety events, they
// never fail the create.
func (s *Service) Create(ctx context.Context, in CreateInput) (*ClinicalAction, []safety.Interaction, error) {
	kindRaw := strings.ToUpper(strings.TrimSpace(in.Kind))
	if (kindRaw == "") == (in.CustomTypeID == nil) {
		return nil, nil, fmt.Errorf("%w: exactly one of action_type and custom_type_id is required", ErrConflict)
	}

	exists, err := s.patients.Exists(ctx, in.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: patient %s", ErrNotFound, in.PatientID)
	}
	discharged, err := s.patients.IsDischarged(ctx, in.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if discharged {
		return nil, nil, ErrPreconditionFailed
	}

	priority := workflow.Priority(strings.ToUpper(strings.TrimSpace(in.Priority)))
	if priority == "" {
		priority = workflow.PriorityRoutine
	}
	if !priority.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}

	now := time.Now().UTC()
	a := &ClinicalAction{
		ID:         uuid.New(),
		PatientID:  in.PatientID,
		Title:      strings.TrimSpace(in.Title),
		Notes:      in.Notes,
		Priority:   priority,
		AssigneeID: in.AssigneeID,
		CreatedBy:  in.Actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if in.CustomTypeID != nil {
		def, err := s.types.Get(ctx, *in.CustomTypeID)
		if err != nil {
			if errors.Is(err, customtype.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: custom type %s", ErrNotFound, in.CustomTypeID)
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		a.CustomTypeID = in.CustomTypeID
		a.CurrentState = def.InitialState()
		a.Department = def.Department
		deadline := workflow.ComputeCustomDeadline(priority, def.SLAMinutes(), now)
		a.SLADeadline = &deadline
	} else {
		kind := workflow.ActionKind(kindRaw)
		initial, err := workflow.InitialState(kind)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidInput, in.Kind)
		}
		a.Kind = kind
		a.CurrentState = initial
		a.Department = workflow.DefaultDepartment(kind, a.Title, in.Department)
		deadline := workflow.ComputeDeadline(priority, now)
		a.SLADeadline = &deadline
	}

	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, a); err != nil {
			return err
		}
		return s.events.Append(txCtx, &ActionEvent{
			ActionID:  a.ID,
			ActorID:   in.Actor.ID,
			ActorRole: string(in.Actor.Role),
			NewState:  a.CurrentState,
			Notes:     "action created",
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	warnings := s.checkDrugInteractions(ctx, a)
	s.broadcast(ctx, a, "action_created", nil)
	return a, warnings, nil
}

// checkDrugInteractions compares a new medication's title against the
// patient's other medication actions. Advisory only.
func (s *Service) checkDrugInteractions(ctx context.Context, a *ClinicalAction) []safety.Interaction {
	if a.IsCustom() || a.Kind != workflow.KindMedication {
		return nil
	}
	siblings, err := s.repo.ListByPatient(ctx, a.PatientID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("action_id", a.ID).Msg("action: interaction check skipped")
		return nil
	}
	var titles []string
	for _, other := range siblings {
		if other.ID != a.ID && !other.IsCustom() && other.Kind == workflow.KindMedication {
			titles = append(titles, other.Title)
		}
	}
	warnings := safety.CheckInteractions(a.Title, titles)
	for _, w := range warnings {
		s.safety.Record(ctx, safety.RecordInput{
			PatientID:   &a.PatientID,
			ActionID:    &a.ID,
			EventType:   safety.EventDrugInteraction,
			Severity:    safety.SeverityWarning,
			Description: w.Message,
		})
	}
	return warnings
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ClinicalAction, error) {
	return s.repo.GetByID(ctx, id)
}

// Transition advances an action to newState under the full guard chain:
// discharged-patient gate, graph validation, role authorization, and
// dependency rules, in that order. Every rejection that represents a
// blocked unsafe attempt appends exactly one safety event before the error
// is returned. The state write and the audit event commit in one
// transaction, conditioned on the state the caller saw; the loser of a
// concurrent race observes ErrStaleState and no partial effect.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, newStateRaw, notes string, actor Actor) (*ClinicalAction, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	discharged, err := s.patients.IsDischarged(ctx, a.PatientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if discharged {
		return nil, ErrPreconditionFailed
	}

	newState := workflow.NormalizeState(newStateRaw)
	if newState == "" {
		return nil, fmt.Errorf("%w: new_state is required", ErrInvalidInput)
	}

	var graph *workflow.CustomGraph
	customTerminal := ""
	if a.IsCustom() {
		graph, err = s.types.Graph(ctx, *a.CustomTypeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		customTerminal = graph.Terminal()
	}

	preDepts := workflow.QueueDepartments(a.Routed(), customTerminal)

	if a.IsCustom() {
		err = graph.Validate(a.CurrentState, newState)
	} else {
		err = workflow.ValidateTransition(a.Kind, a.CurrentState, newState)
	}
	if err != nil {
		s.safety.Record(ctx, safety.RecordInput{
			PatientID:   &a.PatientID,
			ActionID:    &a.ID,
			EventType:   safety.EventUnsafeTransition,
			Severity:    safety.SeverityWarning,
			Description: err.Error(),
			Blocked:     true,
		})
		return nil, err
	}

	scope := workflow.AuthScope{Kind: a.Kind, IsCustom: a.IsCustom(), Department: a.Department}
	if !workflow.RolesAllowedFor(scope, newState).Contains(actor.Role) {
		s.safety.Record(ctx, safety.RecordInput{
			PatientID:   &a.PatientID,
			ActionID:    &a.ID,
			EventType:   safety.EventRoleViolation,
			Severity:    safety.SeverityWarning,
			Description: fmt.Sprintf("role %s may not move %s to %s", actor.Role, s.label(ctx, a), newState),
			Blocked:     true,
		})
		return nil, fmt.Errorf("%w: role %s may not set state %s", ErrForbidden, actor.Role, newState)
	}

	view, err := s.views.view(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	violation, err := s.safety.CheckDependencies(ctx, view, newState, a.PatientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if violation != nil {
		s.safety.Record(ctx, safety.RecordInput{
			PatientID:   &a.PatientID,
			ActionID:    &a.ID,
			EventType:   violation.EventType,
			Severity:    violation.Severity,
			Description: violation.Message,
			Blocked:     true,
		})
		return nil, fmt.Errorf("%w: %s", ErrDependencyViolation, violation.Message)
	}

	prevState := a.CurrentState
	err = s.inTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.UpdateStateCAS(txCtx, a.ID, prevState, newState)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if !ok {
			return ErrStaleState
		}
		if err := s.events.Append(txCtx, &ActionEvent{
			ActionID:      a.ID,
			ActorID:       actor.ID,
			ActorRole:     string(actor.Role),
			PreviousState: prevState,
			NewState:      newState,
			Notes:         notes,
		}); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleState) || errors.Is(err, ErrStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	a.CurrentState = newState
	a.UpdatedAt = time.Now().UTC()

	s.broadcast(ctx, a, "action_updated", preDepts)
	return a, nil
}

// UpdateDetails edits title/notes/assignee. Allowed at any state, terminal
// included.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, title, notes string, assigneeID *string) (*ClinicalAction, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Title = strings.TrimSpace(title)
	a.Notes = notes
	a.AssigneeID = assigneeID
	if err := s.repo.UpdateDetails(ctx, id, a.Title, a.Notes, assigneeID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return a, nil
}

// UpdatePriority changes urgency and recomputes the SLA deadline from now.
func (s *Service) UpdatePriority(ctx context.Context, id uuid.UUID, priorityRaw string) (*ClinicalAction, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	priority := workflow.Priority(strings.ToUpper(strings.TrimSpace(priorityRaw)))
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priorityRaw)
	}

	now := time.Now().UTC()
	var deadline time.Time
	if a.IsCustom() {
		def, err := s.types.Get(ctx, *a.CustomTypeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		deadline = workflow.ComputeCustomDeadline(priority, def.SLAMinutes(), now)
	} else {
		deadline = workflow.ComputeDeadline(priority, now)
	}

	if err := s.repo.UpdatePriority(ctx, id, priority, &deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	a.Priority = priority
	a.SLADeadline = &deadline
	a.UpdatedAt = now

	s.broadcast(ctx, a, "action_updated", nil)
	return a, nil
}

// QueueItem is one department-queue row with its computed SLA status.
type QueueItem struct {
	Action    *ClinicalAction `json:"action"`
	IsOverdue bool            `json:"is_overdue"`
}

// DepartmentQueue lists the actions a department currently owns, sorted
// overdue first, then by priority rank, then deadline ascending. Access by
// an actor outside the department's role mapping is served but recorded as
// a non-blocking safety event; admins are exempt.
func (s *Service) DepartmentQueue(ctx context.Context, department string, includeTerminal bool, actor Actor) ([]*QueueItem, error) {
	if !workflow.CanAccessDepartmentQueue(actor.Role, department) {
		s.safety.Record(ctx, safety.RecordInput{
			EventType:   safety.EventUnauthorizedQueueAccess,
			Severity:    safety.SeverityInfo,
			Description: fmt.Sprintf("role %s viewed the %s queue", actor.Role, department),
		})
	}

	// Queue membership follows the router, not the static department
	// column: a DISPENSED medication sits in the Nursing queue even though
	// Pharmacy owns the row.
	actions, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var items []*QueueItem
	for _, a := range actions {
		terminal, err := s.views.customTerminal(ctx, a)
		if err != nil {
			return nil, err
		}
		routed := a.Routed()
		if !workflow.DepartmentMatches(department, workflow.QueueDepartments(routed, terminal)) {
			// Terminal actions route nowhere; when requested they are
			// shown under the department that carried them.
			if !includeTerminal || !routed.Terminal(terminal) ||
				!workflow.DepartmentMatches(department, []string{a.Department}) {
				continue
			}
		}
		items = append(items, &QueueItem{
			Action:    a,
			IsOverdue: workflow.IsOverdue(routed, terminal, a.SLADeadline, now),
		})
	}
	sortQueue(items)
	return items, nil
}

func sortQueue(items []*QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsOverdue != items[j].IsOverdue {
			return items[i].IsOverdue
		}
		ri, rj := items[i].Action.Priority.Rank(), items[j].Action.Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return deadlineBefore(items[i].Action.SLADeadline, items[j].Action.SLADeadline)
	})
}

func deadlineBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

// Escalations lists every currently overdue action, sorted by priority
// rank then deadline ascending.
func (s *Service) Escalations(ctx context.Context) ([]*QueueItem, error) {
	actions, err := s.repo.ListWithDeadlines(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var items []*QueueItem
	for _, a := range actions {
		terminal, err := s.views.customTerminal(ctx, a)
		if err != nil {
			return nil, err
		}
		if !workflow.IsOverdue(a.Routed(), terminal, a.SLADeadline, now) {
			continue
		}
		items = append(items, &QueueItem{Action: a, IsOverdue: true})
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Action.Priority.Rank(), items[j].Action.Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return deadlineBefore(items[i].Action.SLADeadline, items[j].Action.SLADeadline)
	})
	return items, nil
}

func (s *Service) PatientActions(ctx context.Context, patientID uuid.UUID) ([]*ClinicalAction, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ActionEvents(ctx context.Context, actionID uuid.UUID) ([]*ActionEvent, error) {
	if _, err := s.repo.GetByID(ctx, actionID); err != nil {
		return nil, err
	}
	return s.events.ListByAction(ctx, actionID)
}

// PatientTimeline returns every event across the patient's actions in
// chronological order, joined with the action's display label.
func (s *Service) PatientTimeline(ctx context.Context, patientID uuid.UUID) ([]*TimelineEntry, error) {
	actions, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*ClinicalAction, len(actions))
	for _, a := range actions {
		byID[a.ID] = a
	}

	events, err := s.events.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	entries := make([]*TimelineEntry, 0, len(events))
	for _, e := range events {
		a := byID[e.ActionID]
		if a == nil {
			continue
		}
		entries = append(entries, &TimelineEntry{
			Event:       e,
			ActionID:    a.ID,
			ActionLabel: s.label(ctx, a),
			Department:  a.Department,
		})
	}
	return entries, nil
}

// label is the display name: the title when present, otherwise the kind
// tag or the custom type name.
func (s *Service) label(ctx context.Context, a *ClinicalAction) string {
	if a.Title != "" {
		return a.Title
	}
	if a.IsCustom() {
		if def, err := s.types.Get(ctx, *a.CustomTypeID); err == nil {
			return def.Name
		}
		return "custom action"
	}
	return string(a.Kind)
}

// broadcast delivers the standard action payload to the patient channel,
// the global status channel, and the union of pre- and post-change
// department queues, so a department that just lost ownership still sees
// the terminal update. Fire-and-forget.
func (s *Service) broadcast(ctx context.Context, a *ClinicalAction, event string, preDepts []string) {
	terminal, err := s.views.customTerminal(ctx, a)
	if err != nil {
		s.log.Warn().Err(err).Stringer("action_id", a.ID).Msg("action: broadcast skipped")
		return
	}
	now := time.Now().UTC()
	postDepts := workflow.QueueDepartments(a.Routed(), terminal)
	payload := map[string]interface{}{
		"event":             event,
		"action_id":         a.ID.String(),
		"patient_id":        a.PatientID.String(),
		"new_state":         a.CurrentState,
		"is_overdue":        workflow.IsOverdue(a.Routed(), terminal, a.SLADeadline, now),
		"queue_departments": postDepts,
		"timestamp":         now.Format(time.RFC3339),
	}

	s.hub.BroadcastPatient(a.PatientID, payload)
	s.hub.BroadcastStatus(payload)

	seen := map[string]struct{}{}
	for _, dept := range append(append([]string{}, preDepts...), postDepts...) {
		key := strings.ToLower(strings.TrimSpace(dept))
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		s.hub.BroadcastDepartment(dept, payload)
	}
}
