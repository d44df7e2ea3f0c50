package plan

import (
	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/types"
)

// Plan is a tenant-defined recurring offering. Price and interval are the
// defaults a subscription snapshots at creation time; editing them later
// never retroactively changes existing subscriptions.
type Plan struct {
	ID            string                `db:"id" json:"id"`
	Name          string                `db:"name" json:"name"`
	LookupKey     string                `db:"lookup_key" json:"lookup_key"`
	Description   string                `db:"description" json:"description"`
	Price         decimal.Decimal       `db:"price" json:"price"`
	Currency      string                `db:"currency" json:"currency"`
	Interval      types.BillingInterval `db:"interval" json:"interval"`
	IntervalCount int                   `db:"interval_count" json:"interval_count"`
	TrialDays     int                   `db:"trial_days" json:"trial_days"`
	DisplayOrder  int                   `db:"display_order" json:"display_order"`
	Limits        Limits                `db:"limits" json:"limits"`
	types.BaseModel
}

// Limits holds the usage thresholds configured on a plan. The three fixed
// limits cover the common SaaS metrics; Custom is an open-ended mapping of
// metric name to threshold iterated generically by the limit checker.
type Limits struct {
	MaxUsers    *decimal.Decimal           `db:"max_users" json:"max_users,omitempty"`
	MaxProducts *decimal.Decimal           `db:"max_products" json:"max_products,omitempty"`
	MaxStorage  *decimal.Decimal           `db:"max_storage" json:"max_storage,omitempty"`
	Custom      map[string]decimal.Decimal `db:"custom" json:"custom,omitempty"`
}

// Configured returns only the limits actually set on the plan, keyed by
// metric name. A metric absent here is unlimited and must be omitted from
// limit-check results entirely.
func (l Limits) Configured() map[string]decimal.Decimal {
	configured := make(map[string]decimal.Decimal)
	if l.MaxUsers != nil {
		configured[types.MetricUsers] = *l.MaxUsers
	}
	if l.MaxProducts != nil {
		configured[types.MetricProducts] = *l.MaxProducts
	}
	if l.MaxStorage != nil {
		configured[types.MetricStorage] = *l.MaxStorage
	}
	for metric, threshold := range l.Custom {
		configured[metric] = threshold
	}
	return configured
}

// IsActive reports whether the plan can be subscribed to
func (p *Plan) IsActive() bool {
	return p.Status == types.StatusPublished
}
