package memory

import (
	"context"

	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
)

// InMemorySubscriptionPeriodStore implements subscription.PeriodRepository
type InMemorySubscriptionPeriodStore struct {
	*InMemoryStore[*domainSub.SubscriptionPeriod]
}

// NewInMemorySubscriptionPeriodStore creates a new in-memory subscription period store
func NewInMemorySubscriptionPeriodStore() *InMemorySubscriptionPeriodStore {
	return &InMemorySubscriptionPeriodStore{
		InMemoryStore: NewInMemoryStore[*domainSub.SubscriptionPeriod](),
	}
}

func subscriptionPeriodSortFn(i, j *domainSub.SubscriptionPeriod) bool {
	if i == nil || j == nil {
		return false
	}
	return i.StartDate.Before(j.StartDate)
}

func (s *InMemorySubscriptionPeriodStore) Create(ctx context.Context, p *domainSub.SubscriptionPeriod) error {
	if p == nil {
		return ierr.NewError("subscription period cannot be nil").
			WithHint("Subscription period data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemorySubscriptionPeriodStore) Get(ctx context.Context, id string) (*domainSub.SubscriptionPeriod, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkTenant(ctx, p.TenantID) {
		return nil, ierr.NewError("subscription period not found").
			WithHint("The requested subscription period does not exist").
			WithReportableDetails(map[string]any{"period_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

// ListBySubscription returns the subscription's periods ordered oldest first
func (s *InMemorySubscriptionPeriodStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*domainSub.SubscriptionPeriod, error) {
	return s.InMemoryStore.List(ctx, nil, func(ctx context.Context, p *domainSub.SubscriptionPeriod, _ interface{}) bool {
		return p != nil && checkTenant(ctx, p.TenantID) && p.SubscriptionID == subscriptionID
	}, subscriptionPeriodSortFn)
}

// GetByInvoice returns the period billed by the given invoice
func (s *InMemorySubscriptionPeriodStore) GetByInvoice(ctx context.Context, invoiceID string) (*domainSub.SubscriptionPeriod, error) {
	periods, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, p *domainSub.SubscriptionPeriod, _ interface{}) bool {
		return p != nil && checkTenant(ctx, p.TenantID) && p.InvoiceID != nil && *p.InvoiceID == invoiceID
	}, subscriptionPeriodSortFn)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, ierr.NewError("subscription period not found").
			WithHint("No billing period references this invoice").
			WithReportableDetails(map[string]any{"invoice_id": invoiceID}).
			Mark(ierr.ErrNotFound)
	}
	return periods[0], nil
}

func (s *InMemorySubscriptionPeriodStore) Update(ctx context.Context, p *domainSub.SubscriptionPeriod) error {
	if p == nil {
		return ierr.NewError("subscription period cannot be nil").
			WithHint("Subscription period data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

// Clear clears the subscription period store
func (s *InMemorySubscriptionPeriodStore) Clear() {
	s.InMemoryStore.Clear()
}
