package memory

import (
	"context"
	"time"

	domainAddon "github.com/vidinfra/subflow/internal/domain/addon"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// InMemoryAddonStore implements addon.Repository
type InMemoryAddonStore struct {
	*InMemoryStore[*domainAddon.Addon]
}

// NewInMemoryAddonStore creates a new in-memory addon store
func NewInMemoryAddonStore() *InMemoryAddonStore {
	return &InMemoryAddonStore{
		InMemoryStore: NewInMemoryStore[*domainAddon.Addon](),
	}
}

func addonFilterFn(ctx context.Context, a *domainAddon.Addon, filter interface{}) bool {
	if a == nil {
		return false
	}

	if !checkTenant(ctx, a.TenantID) {
		return false
	}

	f, ok := filter.(*types.AddonFilter)
	if !ok || f == nil {
		return a.Status != types.StatusDeleted
	}

	if f.GetStatus() != "" && a.Status != f.GetStatus() {
		return false
	}

	if f.PlanID != "" && a.PlanID != f.PlanID {
		return false
	}

	return true
}

func addonSortFn(i, j *domainAddon.Addon) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryAddonStore) Create(ctx context.Context, a *domainAddon.Addon) error {
	if a == nil {
		return ierr.NewError("addon cannot be nil").
			WithHint("Addon data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, a.ID, a)
}

func (s *InMemoryAddonStore) Get(ctx context.Context, id string) (*domainAddon.Addon, error) {
	a, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkTenant(ctx, a.TenantID) {
		return nil, ierr.NewError("addon not found").
			WithHint("The requested addon does not exist").
			WithReportableDetails(map[string]any{"addon_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return a, nil
}

func (s *InMemoryAddonStore) List(ctx context.Context, filter *types.AddonFilter) ([]*domainAddon.Addon, error) {
	return s.InMemoryStore.List(ctx, filter, addonFilterFn, addonSortFn)
}

func (s *InMemoryAddonStore) Update(ctx context.Context, a *domainAddon.Addon) error {
	if a == nil {
		return ierr.NewError("addon cannot be nil").
			WithHint("Addon data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, a.ID, a)
}

// Delete soft-deletes the addon
func (s *InMemoryAddonStore) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	a.Status = types.StatusDeleted
	a.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, id, a)
}

// Clear clears the addon store
func (s *InMemoryAddonStore) Clear() {
	s.InMemoryStore.Clear()
}
