package usage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/types"
)

// Repository defines the interface for usage record persistence. The store
// is append-only from the caller's perspective; DeleteOlderThan exists for
// the retention trigger alone.
type Repository interface {
	Insert(ctx context.Context, record *Record) error
	List(ctx context.Context, filter *types.UsageRecordFilter) ([]*Record, error)
	// Sum aggregates the signed quantities of all records matching the filter
	Sum(ctx context.Context, filter *types.UsageRecordFilter) (decimal.Decimal, error)
	// DeleteOlderThan removes records recorded before the cutoff across all
	// tenants and returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
