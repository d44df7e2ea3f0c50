package memory

import (
	"context"

	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
)

// InMemorySubscriptionAddonStore implements subscription.AddonRepository
type InMemorySubscriptionAddonStore struct {
	*InMemoryStore[*domainSub.SubscriptionAddon]
}

// NewInMemorySubscriptionAddonStore creates a new in-memory subscription addon store
func NewInMemorySubscriptionAddonStore() *InMemorySubscriptionAddonStore {
	return &InMemorySubscriptionAddonStore{
		InMemoryStore: NewInMemoryStore[*domainSub.SubscriptionAddon](),
	}
}

func subscriptionAddonSortFn(i, j *domainSub.SubscriptionAddon) bool {
	if i == nil || j == nil {
		return false
	}
	return i.StartDate.Before(j.StartDate)
}

func (s *InMemorySubscriptionAddonStore) Create(ctx context.Context, a *domainSub.SubscriptionAddon) error {
	if a == nil {
		return ierr.NewError("subscription addon cannot be nil").
			WithHint("Subscription addon data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, a.ID, a)
}

func (s *InMemorySubscriptionAddonStore) Get(ctx context.Context, id string) (*domainSub.SubscriptionAddon, error) {
	a, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkTenant(ctx, a.TenantID) {
		return nil, ierr.NewError("subscription addon not found").
			WithHint("The requested subscription addon does not exist").
			WithReportableDetails(map[string]any{"subscription_addon_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return a, nil
}

// ListBySubscription returns every addon row attached to the subscription,
// active or ended
func (s *InMemorySubscriptionAddonStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*domainSub.SubscriptionAddon, error) {
	return s.InMemoryStore.List(ctx, nil, func(ctx context.Context, a *domainSub.SubscriptionAddon, _ interface{}) bool {
		return a != nil && checkTenant(ctx, a.TenantID) && a.SubscriptionID == subscriptionID
	}, subscriptionAddonSortFn)
}

// ListActiveByAddon returns the active attachment rows referencing the
// given catalog addon, across subscriptions of the tenant
func (s *InMemorySubscriptionAddonStore) ListActiveByAddon(ctx context.Context, addonID string) ([]*domainSub.SubscriptionAddon, error) {
	return s.InMemoryStore.List(ctx, nil, func(ctx context.Context, a *domainSub.SubscriptionAddon, _ interface{}) bool {
		return a != nil && checkTenant(ctx, a.TenantID) && a.AddonID == addonID && a.IsActive
	}, subscriptionAddonSortFn)
}

func (s *InMemorySubscriptionAddonStore) Update(ctx context.Context, a *domainSub.SubscriptionAddon) error {
	if a == nil {
		return ierr.NewError("subscription addon cannot be nil").
			WithHint("Subscription addon data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, a.ID, a)
}

// Clear clears the subscription addon store
func (s *InMemorySubscriptionAddonStore) Clear() {
	s.InMemoryStore.Clear()
}
