package addon

import (
	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/types"
)

// Addon is an optional recurring charge attachable to subscriptions of its
// owning plan. FixedQuantity, when set, pins the quantity a subscription
// attaches it with.
type Addon struct {
	ID            string                `db:"id" json:"id"`
	PlanID        string                `db:"plan_id" json:"plan_id"`
	Name          string                `db:"name" json:"name"`
	Description   string                `db:"description" json:"description"`
	Price         decimal.Decimal       `db:"price" json:"price"`
	Interval      types.BillingInterval `db:"interval" json:"interval"`
	IntervalCount int                   `db:"interval_count" json:"interval_count"`
	FixedQuantity *int                  `db:"fixed_quantity" json:"fixed_quantity,omitempty"`
	types.BaseModel
}

// IsActive reports whether the addon can be attached
func (a *Addon) IsActive() bool {
	return a.Status == types.StatusPublished
}
