package memory

import (
	"context"
	"time"

	domainPlan "github.com/vidinfra/subflow/internal/domain/plan"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*domainPlan.Plan]
}

// NewInMemoryPlanStore creates a new in-memory plan store
func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*domainPlan.Plan](),
	}
}

// planFilterFn implements filtering logic for plans
func planFilterFn(ctx context.Context, p *domainPlan.Plan, filter interface{}) bool {
	if p == nil {
		return false
	}

	if !checkTenant(ctx, p.TenantID) {
		return false
	}

	f, ok := filter.(*types.PlanFilter)
	if !ok || f == nil {
		return p.Status != types.StatusDeleted
	}

	if f.GetStatus() != "" && p.Status != f.GetStatus() {
		return false
	}

	if len(f.PlanIDs) > 0 {
		found := false
		for _, id := range f.PlanIDs {
			if id == p.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && p.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && p.CreatedAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

// planSortFn orders plans for catalog display: display order first, newest
// created as tiebreaker
func planSortFn(i, j *domainPlan.Plan) bool {
	if i == nil || j == nil {
		return false
	}
	if i.DisplayOrder != j.DisplayOrder {
		return i.DisplayOrder < j.DisplayOrder
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPlanStore) Create(ctx context.Context, p *domainPlan.Plan) error {
	if p == nil {
		return ierr.NewError("plan cannot be nil").
			WithHint("Plan data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*domainPlan.Plan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkTenant(ctx, p.TenantID) {
		return nil, ierr.NewError("plan not found").
			WithHint("The requested plan does not exist").
			WithReportableDetails(map[string]any{"plan_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPlanStore) List(ctx context.Context, filter *types.PlanFilter) ([]*domainPlan.Plan, error) {
	return s.InMemoryStore.List(ctx, filter, planFilterFn, planSortFn)
}

func (s *InMemoryPlanStore) Count(ctx context.Context, filter *types.PlanFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, planFilterFn)
}

func (s *InMemoryPlanStore) Update(ctx context.Context, p *domainPlan.Plan) error {
	if p == nil {
		return ierr.NewError("plan cannot be nil").
			WithHint("Plan data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

// Delete soft-deletes the plan; the row stays for subscriptions that
// denormalized its terms
func (s *InMemoryPlanStore) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Status = types.StatusDeleted
	p.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, id, p)
}

// Clear clears the plan store
func (s *InMemoryPlanStore) Clear() {
	s.InMemoryStore.Clear()
}
