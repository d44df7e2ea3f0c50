package usage

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/types"
)

// Record is one append-only usage event. Quantity is signed: negative
// quantities model releases (a deleted user, freed storage) and feed the
// same aggregate the positive ones do. Records are never mutated; only the
// retention trigger deletes them.
type Record struct {
	ID             string          `db:"id" json:"id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	Metric         string          `db:"metric" json:"metric"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	RecordDate     time.Time       `db:"record_date" json:"record_date"`
	Metadata       types.Metadata  `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}
