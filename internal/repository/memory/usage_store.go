package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	domainUsage "github.com/vidinfra/subflow/internal/domain/usage"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// InMemoryUsageStore implements usage.Repository
type InMemoryUsageStore struct {
	*InMemoryStore[*domainUsage.Record]
}

// NewInMemoryUsageStore creates a new in-memory usage record store
func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		InMemoryStore: NewInMemoryStore[*domainUsage.Record](),
	}
}

func usageFilterFn(ctx context.Context, r *domainUsage.Record, filter interface{}) bool {
	if r == nil {
		return false
	}

	if !checkTenant(ctx, r.TenantID) {
		return false
	}

	f, ok := filter.(*types.UsageRecordFilter)
	if !ok || f == nil {
		return true
	}

	if f.SubscriptionID != "" && r.SubscriptionID != f.SubscriptionID {
		return false
	}

	if f.Metric != "" && r.Metric != f.Metric {
		return false
	}

	if f.StartTime != nil && r.RecordDate.Before(*f.StartTime) {
		return false
	}

	if f.EndTime != nil && r.RecordDate.After(*f.EndTime) {
		return false
	}

	return true
}

func usageSortFn(i, j *domainUsage.Record) bool {
	if i == nil || j == nil {
		return false
	}
	return i.RecordDate.Before(j.RecordDate)
}

func (s *InMemoryUsageStore) Insert(ctx context.Context, r *domainUsage.Record) error {
	if r == nil {
		return ierr.NewError("usage record cannot be nil").
			WithHint("Usage record data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, r.ID, r)
}

func (s *InMemoryUsageStore) List(ctx context.Context, filter *types.UsageRecordFilter) ([]*domainUsage.Record, error) {
	return s.InMemoryStore.List(ctx, filter, usageFilterFn, usageSortFn)
}

// Sum aggregates signed quantities over all matching records
func (s *InMemoryUsageStore) Sum(ctx context.Context, filter *types.UsageRecordFilter) (decimal.Decimal, error) {
	records, err := s.InMemoryStore.List(ctx, filter, usageFilterFn, usageSortFn)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Quantity)
	}
	return total, nil
}

// DeleteOlderThan removes records recorded before the cutoff across all
// tenants. Used by the retention trigger only.
func (s *InMemoryUsageStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *domainUsage.Record, _ interface{}) bool {
		return r != nil && r.RecordDate.Before(cutoff)
	}, usageSortFn)
	if err != nil {
		return 0, err
	}

	for _, r := range stale {
		if err := s.InMemoryStore.Delete(ctx, r.ID); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Clear clears the usage record store
func (s *InMemoryUsageStore) Clear() {
	s.InMemoryStore.Clear()
}
