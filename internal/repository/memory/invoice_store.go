package memory

import (
	"context"
	"time"

	domainInvoice "github.com/vidinfra/subflow/internal/domain/invoice"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*domainInvoice.Invoice]
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*domainInvoice.Invoice](),
	}
}

// invoiceMatchFn applies every filter except tenant scoping; tenant scoping
// differs between List and ListAllTenant
func invoiceMatchFn(inv *domainInvoice.Invoice, f *types.InvoiceFilter) bool {
	if f == nil {
		return inv.Status != types.StatusDeleted
	}

	if f.GetStatus() != "" && inv.Status != f.GetStatus() {
		return false
	}

	if len(f.InvoiceIDs) > 0 {
		found := false
		for _, id := range f.InvoiceIDs {
			if id == inv.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.SubscriptionID != "" && inv.SubscriptionID != f.SubscriptionID {
		return false
	}

	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}

	if len(f.InvoiceStatus) > 0 {
		found := false
		for _, status := range f.InvoiceStatus {
			if status == inv.InvoiceStatus {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.DueBefore != nil && !inv.DueDate.Before(*f.DueBefore) {
		return false
	}

	if f.DueOn != nil {
		dy, dm, dd := inv.DueDate.Date()
		fy, fm, fd := f.DueOn.Date()
		if dy != fy || dm != fm || dd != fd {
			return false
		}
	}

	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && inv.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && inv.CreatedAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

func invoiceFilterFn(ctx context.Context, inv *domainInvoice.Invoice, filter interface{}) bool {
	if inv == nil {
		return false
	}
	if !checkTenant(ctx, inv.TenantID) {
		return false
	}
	f, _ := filter.(*types.InvoiceFilter)
	return invoiceMatchFn(inv, f)
}

func invoiceSortFn(i, j *domainInvoice.Invoice) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *domainInvoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*domainInvoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkTenant(ctx, inv.TenantID) {
		return nil, ierr.NewError("invoice not found").
			WithHint("The requested invoice does not exist").
			WithReportableDetails(map[string]any{"invoice_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*domainInvoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *domainInvoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice data is required").
			Mark(ierr.ErrValidation)
	}
	inv.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, inv.ID, inv)
}

// ListAllTenant lists matching invoices across every tenant
func (s *InMemoryInvoiceStore) ListAllTenant(ctx context.Context, filter *types.InvoiceFilter) ([]*domainInvoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, filter, func(ctx context.Context, inv *domainInvoice.Invoice, f interface{}) bool {
		if inv == nil {
			return false
		}
		inf, _ := f.(*types.InvoiceFilter)
		return invoiceMatchFn(inv, inf)
	}, invoiceSortFn)
}

// Clear clears the invoice store
func (s *InMemoryInvoiceStore) Clear() {
	s.InMemoryStore.Clear()
}
