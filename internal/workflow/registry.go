// Package workflow holds the pure rules of the clinical workflow engine:
// the state-transition registry for built-in and custom action kinds,
// department-queue routing, SLA deadline math, and the role authorization
// table. Nothing in this package touches storage or the network.
package workflow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ActionKind discriminates the built-in clinical workflows.
type ActionKind string

const (
	KindDiagnostic      ActionKind = "DIAGNOSTIC"
	KindMedication      ActionKind = "MEDICATION"
	KindReferral        ActionKind = "REFERRAL"
	KindCareInstruction ActionKind = "CARE_INSTRUCTION"
	KindVitalsRequest   ActionKind = "VITALS_REQUEST"
)

// Priority orders actions by clinical urgency.
type Priority string

const (
	PriorityRoutine  Priority = "ROUTINE"
	PriorityUrgent   Priority = "URGENT"
	PriorityCritical Priority = "CRITICAL"
)

// Rank returns a sortable urgency rank, lowest for CRITICAL.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityUrgent:
		return 1
	default:
		return 2
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// builtinChains defines the fixed linear state graph per built-in kind.
// Each non-terminal state has exactly one successor; the last entry is the
// terminal state.
var builtinChains = map[ActionKind][]string{
	KindDiagnostic:      {"REQUESTED", "SAMPLE_COLLECTED", "PROCESSING", "COMPLETED"},
	KindMedication:      {"PRESCRIBED", "DISPENSED", "ADMINISTERED"},
	KindReferral:        {"INITIATED", "ACKNOWLEDGED", "REVIEWED", "CLOSED"},
	KindCareInstruction: {"ISSUED", "ACKNOWLEDGED", "IN_PROGRESS", "COMPLETED"},
	KindVitalsRequest:   {"ISSUED", "ACKNOWLEDGED", "IN_PROGRESS", "COMPLETED"},
}

// Valid reports whether k is a known built-in kind.
func (k ActionKind) Valid() bool {
	_, ok := builtinChains[k]
	return ok
}

// Kinds returns all built-in kinds in a stable order.
func Kinds() []ActionKind {
	kinds := make([]ActionKind, 0, len(builtinChains))
	for k := range builtinChains {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// InitialState returns the first state of a built-in kind's chain.
func InitialState(kind ActionKind) (string, error) {
	chain, ok := builtinChains[kind]
	if !ok {
		return "", fmt.Errorf("unknown action kind: %s", kind)
	}
	return chain[0], nil
}

// TerminalState returns the last state of a built-in kind's chain.
func TerminalState(kind ActionKind) (string, error) {
	chain, ok := builtinChains[kind]
	if !ok {
		return "", fmt.Errorf("unknown action kind: %s", kind)
	}
	return chain[len(chain)-1], nil
}

// IsTerminal reports whether state completes a built-in kind's chain.
func IsTerminal(kind ActionKind, state string) bool {
	chain, ok := builtinChains[kind]
	if !ok {
		return false
	}
	return chain[len(chain)-1] == state
}

// AllowedNextStates returns the legal successor states for a built-in kind.
// The returned slice is empty for terminal or unknown states.
func AllowedNextStates(kind ActionKind, current string) []string {
	chain, ok := builtinChains[kind]
	if !ok {
		return nil
	}
	for i := 0; i < len(chain)-1; i++ {
		if chain[i] == current {
			return []string{chain[i+1]}
		}
	}
	return nil
}

// TransitionError describes a rejected state transition. Its message names
// the disallowed pair and the allowed set so the safety trail can record it
// verbatim.
type TransitionError struct {
	Label   string // kind or custom type name
	Current string
	Target  string
	Allowed []string
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("no transitions from state %q for %s", e.Current, e.Label)
	}
	return fmt.Sprintf("invalid transition: %s cannot go from %q to %q (allowed: %s)",
		e.Label, e.Current, e.Target, strings.Join(e.Allowed, ", "))
}

// ValidateTransition checks a built-in kind's state graph. It has no side
// effects; a nil return means the transition is physically legal.
func ValidateTransition(kind ActionKind, current, target string) error {
	if _, ok := builtinChains[kind]; !ok {
		return fmt.Errorf("unknown action kind: %s", kind)
	}
	allowed := AllowedNextStates(kind, current)
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return &TransitionError{Label: string(kind), Current: current, Target: target, Allowed: allowed}
}

// CustomGraph is the derived adjacency of a custom workflow definition:
// state[i] -> state[i+1], last state terminal. Built once per definition and
// cached; definitions are append-immutable once referenced by an action.
type CustomGraph struct {
	Name     string
	States   []string
	next     map[string]string
	terminal string
}

// NewCustomGraph derives the adjacency map from an ordered state list.
func NewCustomGraph(name string, states []string) *CustomGraph {
	g := &CustomGraph{
		Name:   name,
		States: append([]string(nil), states...),
		next:   make(map[string]string, len(states)),
	}
	for i := 0; i < len(states)-1; i++ {
		g.next[states[i]] = states[i+1]
	}
	if len(states) > 0 {
		g.terminal = states[len(states)-1]
	}
	return g
}

// Terminal returns the graph's terminal state.
func (g *CustomGraph) Terminal() string { return g.terminal }

// IsTerminal reports whether state completes the custom chain.
func (g *CustomGraph) IsTerminal(state string) bool {
	return g.terminal != "" && g.terminal == state
}

// AllowedNextStates returns the single legal successor, or an empty slice.
func (g *CustomGraph) AllowedNextStates(current string) []string {
	if next, ok := g.next[current]; ok {
		return []string{next}
	}
	return nil
}

// Validate checks current -> target against the derived adjacency.
func (g *CustomGraph) Validate(current, target string) error {
	allowed := g.AllowedNextStates(current)
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return &TransitionError{Label: g.Name, Current: current, Target: target, Allowed: allowed}
}

// GraphCache caches derived custom graphs by definition id so the adjacency
// is computed once per definition, not per validation call.
type GraphCache struct {
	mu     sync.RWMutex
	graphs map[uuid.UUID]*CustomGraph
}

// NewGraphCache returns an empty cache.
func NewGraphCache() *GraphCache {
	return &GraphCache{graphs: make(map[uuid.UUID]*CustomGraph)}
}

// Get returns the cached graph for id, or nil.
func (c *GraphCache) Get(id uuid.UUID) *CustomGraph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graphs[id]
}

// GetOrBuild returns the cached graph for id, deriving and caching it from
// the given state list on first use.
func (c *GraphCache) GetOrBuild(id uuid.UUID, name string, states []string) *CustomGraph {
	c.mu.RLock()
	g := c.graphs[id]
	c.mu.RUnlock()
	if g != nil {
		return g
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g = c.graphs[id]; g != nil {
		return g
	}
	g = NewCustomGraph(name, states)
	c.graphs[id] = g
	return g
}

// NormalizeState canonicalizes a state token: trimmed, uppercased.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
