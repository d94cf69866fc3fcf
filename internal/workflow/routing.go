package workflow

import "strings"

// Well-known department names used by the built-in kinds.
const (
	DeptLaboratory = "Laboratory"
	DeptRadiology  = "Radiology"
	DeptPharmacy   = "Pharmacy"
	DeptNursing    = "Nursing"
	DeptReferral   = "Referral"
	DeptGeneral    = "General"
)

// radiologyKeywords flag a diagnostic title as an imaging request so it
// defaults to Radiology instead of Laboratory.
var radiologyKeywords = []string{"xray", "x-ray", "ct", "mri", "ultrasound", "scan", "radiology"}

func normDept(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultDepartment picks the owning department for a new built-in action.
// An explicit non-blank override always wins.
func DefaultDepartment(kind ActionKind, title, override string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}

	switch kind {
	case KindDiagnostic:
		titleNorm := normDept(title)
		for _, kw := range radiologyKeywords {
			if strings.Contains(titleNorm, kw) {
				return DeptRadiology
			}
		}
		return DeptLaboratory
	case KindMedication:
		return DeptPharmacy
	case KindReferral:
		return DeptReferral
	case KindCareInstruction, KindVitalsRequest:
		return DeptNursing
	}
	return DeptGeneral
}

// RoutedAction is the slice of a clinical action the router needs.
type RoutedAction struct {
	Kind       ActionKind // zero for custom actions
	IsCustom   bool
	State      string
	Department string // static owning department
}

// Terminal reports whether the action has reached its final state. Custom
// actions compare against their configured terminal state name.
func (a RoutedAction) Terminal(customTerminal string) bool {
	if a.IsCustom {
		return customTerminal != "" && a.State == customTerminal
	}
	return IsTerminal(a.Kind, a.State)
}

// QueueDepartments derives which department queues currently own the action.
// Terminal actions belong to no queue. Custom actions always route to their
// configured department; they do not sub-route per state.
func QueueDepartments(a RoutedAction, customTerminal string) []string {
	if a.Terminal(customTerminal) {
		return nil
	}

	if a.IsCustom {
		return []string{a.Department}
	}

	switch a.Kind {
	case KindMedication:
		switch a.State {
		case "PRESCRIBED":
			return []string{DeptPharmacy}
		case "DISPENSED":
			return []string{DeptNursing}
		}
		return nil
	case KindCareInstruction, KindVitalsRequest:
		return []string{DeptNursing}
	case KindReferral:
		if a.Department != "" {
			return []string{a.Department}
		}
		return []string{DeptReferral}
	case KindDiagnostic:
		if a.Department != "" {
			return []string{a.Department}
		}
		return []string{DeptLaboratory}
	}
	return []string{a.Department}
}

// PrimaryQueueDepartment is the head of the queue list, falling back to the
// action's static department for terminal actions (used for display and
// overdue analytics).
func PrimaryQueueDepartment(a RoutedAction, customTerminal string) string {
	if queue := QueueDepartments(a, customTerminal); len(queue) > 0 {
		return queue[0]
	}
	return a.Department
}

// DepartmentMatches reports whether department equals any candidate,
// case-insensitively.
func DepartmentMatches(department string, candidates []string) bool {
	dept := normDept(department)
	for _, c := range candidates {
		if normDept(c) == dept {
			return true
		}
	}
	return false
}
