package proration

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Params describes a mid-period plan change for which a proration
// adjustment may be owed
type Params struct {
	SubscriptionID     string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	ChangeDate         time.Time
	OldAmount          decimal.Decimal
	NewAmount          decimal.Decimal
}

// Result is the adjustment a calculator decided on. A positive amount is a
// charge to the customer, a negative one a credit.
type Result struct {
	Amount      decimal.Decimal
	Description string
}

// Calculator decides the proration adjustment for a deferred plan change.
// The formula is deliberately pluggable: the engine ships no sanctioned
// formula, only this seam, so a real one can be swapped in without touching
// the subscription state machine.
type Calculator interface {
	Calculate(ctx context.Context, params Params) (*Result, error)
}

// NoProration is the shipped default: plan changes carry no mid-period
// adjustment.
type NoProration struct{}

func NewNoProration() Calculator {
	return &NoProration{}
}

func (c *NoProration) Calculate(ctx context.Context, params Params) (*Result, error) {
	return &Result{Amount: decimal.Zero, Description: "no proration"}, nil
}
