package action

import (
	"context"

	"github.com/google/uuid"

	"github.com/clavis/clavis/internal/domain/customtype"
	"github.com/clavis/clavis/internal/domain/safety"
)

// ViewSource projects a patient's actions for the safety engine. It is the
// concrete safety.ActionSource so the safety package never depends on this
// one.
type ViewSource struct {
	repo  Repository
	types *customtype.Service
}

func NewViewSource(repo Repository, types *customtype.Service) *ViewSource {
	return &ViewSource{repo: repo, types: types}
}

// customTerminal resolves the terminal state for a custom action, or ""
// for built-in kinds.
func (v *ViewSource) customTerminal(ctx context.Context, a *ClinicalAction) (string, error) {
	if !a.IsCustom() {
		return "", nil
	}
	graph, err := v.types.Graph(ctx, *a.CustomTypeID)
	if err != nil {
		return "", err
	}
	return graph.Terminal(), nil
}

func (v *ViewSource) view(ctx context.Context, a *ClinicalAction) (safety.ActionView, error) {
	terminal, err := v.customTerminal(ctx, a)
	if err != nil {
		return safety.ActionView{}, err
	}
	return safety.ActionView{
		ID:             a.ID,
		Kind:           a.Kind,
		IsCustom:       a.IsCustom(),
		CustomTerminal: terminal,
		State:          a.CurrentState,
		Priority:       a.Priority,
		Department:     a.Department,
		Deadline:       a.SLADeadline,
	}, nil
}

func (v *ViewSource) PatientActionViews(ctx context.Context, patientID uuid.UUID) ([]safety.ActionView, error) {
	actions, err := v.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	views := make([]safety.ActionView, 0, len(actions))
	for _, a := range actions {
		view, err := v.view(ctx, a)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
