package invoice

import (
	"context"
	"fmt"
	"time"
)

// Sequence is a tenant's invoice number counter for one calendar year
type Sequence struct {
	ID        string
	TenantID  string
	Year      int
	LastValue int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SequenceRepository hands out invoice numbers atomically. Counting rows
// and formatting the count is a race under concurrent generation; Next must
// be an atomic increment (mutex, CAS or a store-native sequence).
type SequenceRepository interface {
	// Next reserves and returns the next sequence value for the tenant and
	// year
	Next(ctx context.Context, tenantID string, year int) (int64, error)
}

// FormatInvoiceNumber renders a reserved sequence value as the
// human-visible invoice number, e.g. INV-2026-000042.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, seq)
}
