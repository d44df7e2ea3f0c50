package memory

import (
	"context"
	"time"

	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*domainSub.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*domainSub.Subscription](),
	}
}

// subscriptionMatchFn applies every filter except tenant scoping; tenant
// scoping differs between List and ListAllTenant
func subscriptionMatchFn(sub *domainSub.Subscription, f *types.SubscriptionFilter) bool {
	if f == nil {
		return sub.Status != types.StatusDeleted
	}

	if f.GetStatus() != "" && sub.Status != f.GetStatus() {
		return false
	}

	if len(f.SubscriptionIDs) > 0 {
		found := false
		for _, id := range f.SubscriptionIDs {
			if id == sub.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.CustomerID != "" && sub.CustomerID != f.CustomerID {
		return false
	}

	if f.PlanID != "" && sub.PlanID != f.PlanID {
		return false
	}

	if len(f.SubscriptionStatus) > 0 {
		found := false
		for _, status := range f.SubscriptionStatus {
			if status == sub.SubscriptionStatus {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.NextBillingBefore != nil && sub.NextBillingDate.After(*f.NextBillingBefore) {
		return false
	}

	if f.CurrentPeriodEndBefore != nil && sub.CurrentPeriodEnd.After(*f.CurrentPeriodEndBefore) {
		return false
	}

	if f.TrialEndBefore != nil {
		if sub.TrialEnd == nil || sub.TrialEnd.After(*f.TrialEndBefore) {
			return false
		}
	}

	if f.CancelAtPeriodEnd != nil && sub.CancelAtPeriodEnd != *f.CancelAtPeriodEnd {
		return false
	}

	if f.ResumeAtBefore != nil {
		if sub.ResumeAt == nil || sub.ResumeAt.After(*f.ResumeAtBefore) {
			return false
		}
	}

	if f.CreatedBefore != nil && !sub.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}

	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && sub.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && sub.CreatedAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

func subscriptionFilterFn(ctx context.Context, sub *domainSub.Subscription, filter interface{}) bool {
	if sub == nil {
		return false
	}
	if !checkTenant(ctx, sub.TenantID) {
		return false
	}
	f, _ := filter.(*types.SubscriptionFilter)
	return subscriptionMatchFn(sub, f)
}

func subscriptionSortFn(i, j *domainSub.Subscription) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *domainSub.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*domainSub.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkTenant(ctx, sub.TenantID) {
		return nil, ierr.NewError("subscription not found").
			WithHint("The requested subscription does not exist").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*domainSub.Subscription, error) {
	return s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *domainSub.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription data is required").
			Mark(ierr.ErrValidation)
	}
	sub.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, sub.ID, sub)
}

// ListAllTenant lists matching subscriptions across every tenant
func (s *InMemorySubscriptionStore) ListAllTenant(ctx context.Context, filter *types.SubscriptionFilter) ([]*domainSub.Subscription, error) {
	return s.InMemoryStore.List(ctx, filter, func(ctx context.Context, sub *domainSub.Subscription, f interface{}) bool {
		if sub == nil {
			return false
		}
		sf, _ := f.(*types.SubscriptionFilter)
		return subscriptionMatchFn(sub, sf)
	}, subscriptionSortFn)
}

// Clear clears the subscription store
func (s *InMemorySubscriptionStore) Clear() {
	s.InMemoryStore.Clear()
}
