package customtype

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/clavis/clavis/internal/workflow"
)

var (
	// ErrNotFound means no definition matches the given id or name.
	ErrNotFound = errors.New("custom action type not found")
	// ErrConflict means a definition with the same name already exists.
	ErrConflict = errors.New("custom action type name already in use")
)

// statePattern restricts state tokens after normalization.
var statePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// Service validates and stores custom workflow definitions, and feeds the
// shared graph cache so adjacency is derived once per definition.
type Service struct {
	repo   Repository
	graphs *workflow.GraphCache
}

func NewService(repo Repository, graphs *workflow.GraphCache) *Service {
	return &Service{repo: repo, graphs: graphs}
}

// Create validates the ordered state chain and persists the definition.
// The terminal state must be the last entry of the chain.
func (s *Service) Create(ctx context.Context, t *CustomActionType) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	t.Department = strings.TrimSpace(t.Department)
	if t.Department == "" {
		return fmt.Errorf("department is required")
	}

	if len(t.States) < 2 {
		return fmt.Errorf("at least 2 states required")
	}
	seen := make(map[string]bool, len(t.States))
	normalized := make([]string, len(t.States))
	for i, raw := range t.States {
		state := workflow.NormalizeState(raw)
		if !statePattern.MatchString(state) {
			return fmt.Errorf("invalid state name %q: only letters, digits and underscores allowed", raw)
		}
		if seen[state] {
			return fmt.Errorf("duplicate state %q", state)
		}
		seen[state] = true
		normalized[i] = state
	}
	t.States = normalized
	t.TerminalState = workflow.NormalizeState(t.TerminalState)
	if t.TerminalState != t.States[len(t.States)-1] {
		return fmt.Errorf("terminal_state must be the last state in the list")
	}

	if t.SLARoutineMinutes <= 0 || t.SLAUrgentMinutes <= 0 || t.SLACriticalMinutes <= 0 {
		defaults := workflow.DefaultSLAMinutes()
		if t.SLARoutineMinutes <= 0 {
			t.SLARoutineMinutes = defaults.Routine
		}
		if t.SLAUrgentMinutes <= 0 {
			t.SLAUrgentMinutes = defaults.Urgent
		}
		if t.SLACriticalMinutes <= 0 {
			t.SLACriticalMinutes = defaults.Critical
		}
	}

	// Name uniqueness is case-insensitive; the unique index backs this up
	// against concurrent creates.
	if _, err := s.repo.GetByName(ctx, t.Name); err == nil {
		return ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return err
	}
	s.graphs.GetOrBuild(t.ID, t.Name, t.States)
	return nil
}

// Get returns one definition by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CustomActionType, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns definitions, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*CustomActionType, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Graph returns the cached derived adjacency for a definition, loading the
// definition on first use.
func (s *Service) Graph(ctx context.Context, id uuid.UUID) (*workflow.CustomGraph, error) {
	if g := s.graphs.Get(id); g != nil {
		return g, nil
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.graphs.GetOrBuild(t.ID, t.Name, t.States), nil
}
