package customtype

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *CustomActionType) error
	GetByID(ctx context.Context, id uuid.UUID) (*CustomActionType, error)
	GetByName(ctx context.Context, name string) (*CustomActionType, error)
	List(ctx context.Context, limit, offset int) ([]*CustomActionType, int, error)
}
