package addon

import (
	"context"

	"github.com/vidinfra/subflow/internal/types"
)

// Repository defines the interface for addon persistence
type Repository interface {
	Create(ctx context.Context, addon *Addon) error
	Get(ctx context.Context, id string) (*Addon, error)
	List(ctx context.Context, filter *types.AddonFilter) ([]*Addon, error)
	Update(ctx context.Context, addon *Addon) error
	Delete(ctx context.Context, id string) error
}
