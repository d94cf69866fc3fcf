package workflow

import "time"

// Fixed SLA offsets for built-in kinds.
var slaOffsets = map[Priority]time.Duration{
	PriorityRoutine:  2 * time.Hour,
	PriorityUrgent:   30 * time.Minute,
	PriorityCritical: 10 * time.Minute,
}

// SLAMinutes holds the per-priority deadline offsets a custom workflow
// definition carries.
type SLAMinutes struct {
	Routine  int
	Urgent   int
	Critical int
}

// DefaultSLAMinutes mirrors the built-in offsets for new custom definitions.
func DefaultSLAMinutes() SLAMinutes {
	return SLAMinutes{Routine: 120, Urgent: 30, Critical: 10}
}

func (m SLAMinutes) forPriority(p Priority) time.Duration {
	switch p {
	case PriorityCritical:
		return time.Duration(m.Critical) * time.Minute
	case PriorityUrgent:
		return time.Duration(m.Urgent) * time.Minute
	default:
		return time.Duration(m.Routine) * time.Minute
	}
}

// ComputeDeadline returns the SLA deadline for a built-in action created or
// re-prioritized at now.
func ComputeDeadline(p Priority, now time.Time) time.Time {
	offset, ok := slaOffsets[p]
	if !ok {
		offset = slaOffsets[PriorityRoutine]
	}
	return now.Add(offset)
}

// ComputeCustomDeadline returns the SLA deadline using a custom definition's
// per-priority minute offsets.
func ComputeCustomDeadline(p Priority, minutes SLAMinutes, now time.Time) time.Time {
	return now.Add(minutes.forPriority(p))
}

// IsOverdue reports whether a non-terminal action has crossed its deadline.
// Terminal actions are never overdue, regardless of deadline.
func IsOverdue(a RoutedAction, customTerminal string, deadline *time.Time, now time.Time) bool {
	if a.Terminal(customTerminal) {
		return false
	}
	if deadline == nil {
		return false
	}
	return now.After(*deadline)
}
