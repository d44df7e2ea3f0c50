package types

import (
	"time"

	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusPending indicates the invoice awaits payment
	InvoiceStatusPending InvoiceStatus = "pending"
	// InvoiceStatusPaid indicates payment has been applied in full
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusFailed indicates collection failed; the owning
	// subscription is moved to past_due
	InvoiceStatusFailed InvoiceStatus = "failed"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Invalid invoice status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceLineItemType is the type of the source of an invoice line item,
// differentiating the base subscription charge from addon charges
type InvoiceLineItemType string

const (
	InvoiceLineItemTypeSubscription InvoiceLineItemType = "subscription"
	InvoiceLineItemTypeAddon        InvoiceLineItemType = "addon"
)

func (t InvoiceLineItemType) String() string {
	return string(t)
}

// InvoiceFilter represents filters for invoice queries
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs     []string        `json:"invoice_ids,omitempty" form:"invoice_ids"`
	SubscriptionID string          `json:"subscription_id,omitempty" form:"subscription_id"`
	CustomerID     string          `json:"customer_id,omitempty" form:"customer_id"`
	InvoiceStatus  []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
	// DueBefore selects invoices due at or before the given instant
	DueBefore *time.Time `json:"due_before,omitempty" form:"due_before"`
	// DueOn selects invoices whose due date falls on the given calendar day
	DueOn *time.Time `json:"due_on,omitempty" form:"due_on"`
}

// NewInvoiceFilter creates a new InvoiceFilter with default values
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitInvoiceFilter creates a new InvoiceFilter with no pagination limits
func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the invoice filter
func (f *InvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, status := range f.InvoiceStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *InvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *InvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *InvoiceFilter) GetStatus() Status {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// GetSort implements BaseFilter interface
func (f *InvoiceFilter) GetSort() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *InvoiceFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

func (f *InvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
