package invoice

import (
	"context"

	"github.com/vidinfra/subflow/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create creates a new invoice with its line items
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// Update updates an existing invoice
	Update(ctx context.Context, invoice *Invoice) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// ListAllTenant lists matching invoices across every tenant. Reserved
	// for scheduled batch triggers.
	ListAllTenant(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
}
