package action

import "errors"

// Failure taxonomy for the action surface. Graph violations additionally
// carry a *workflow.TransitionError naming the disallowed pair and the
// allowed set; callers unwrap with errors.As.
var (
	ErrInvalidInput        = errors.New("action: invalid input")
	ErrNotFound            = errors.New("action: not found")
	ErrConflict            = errors.New("action: conflict")
	ErrForbidden           = errors.New("action: role not authorized")
	ErrPreconditionFailed  = errors.New("action: patient is discharged")
	ErrDependencyViolation = errors.New("action: dependency violation")
	ErrStaleState          = errors.New("action: state changed concurrently")
	ErrStorage             = errors.New("action: storage failure")
)
