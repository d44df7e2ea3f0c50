package subscription

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/types"
)

// Subscription is one customer-plan relationship. Plan terms are
// denormalized at creation time so later catalog edits never change a
// running subscription. The row is never deleted; expired subscriptions
// remain for history.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// CustomerID is the identifier for the customer in our system
	CustomerID string `db:"customer_id" json:"customer_id"`

	// PlanID is the identifier for the plan in our system
	PlanID string `db:"plan_id" json:"plan_id"`

	// PlanName is the plan's display name at creation/change time
	PlanName string `db:"plan_name" json:"plan_name"`

	// SubscriptionStatus is the lifecycle state of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// Price is the recurring base amount snapshotted from the plan
	Price decimal.Decimal `db:"price" json:"price"`

	// Currency is the currency of the subscription in lowercase 3 digit ISO codes
	Currency string `db:"currency" json:"currency"`

	// Interval is the billing interval snapshotted from the plan
	Interval types.BillingInterval `db:"interval" json:"interval"`

	// IntervalCount is the billing interval multiplier snapshotted from the plan
	IntervalCount int `db:"interval_count" json:"interval_count"`

	// StartDate is the start date of the subscription
	StartDate time.Time `db:"start_date" json:"start_date"`

	// CurrentPeriodStart is the start of the billing period currently lived in.
	// Invariant: always strictly before CurrentPeriodEnd.
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the billing period currently lived in
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// NextBillingDate is when the billing engine next owes this subscription
	// an invoice
	NextBillingDate time.Time `db:"next_billing_date" json:"next_billing_date"`

	// TrialStart is the start date of the trial period
	TrialStart *time.Time `db:"trial_start" json:"trial_start,omitempty"`

	// TrialEnd is the end date of the trial period
	TrialEnd *time.Time `db:"trial_end" json:"trial_end,omitempty"`

	// CancelledAt is the date the cancellation was requested
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	// CancellationReason is the caller-supplied reason for cancelling
	CancellationReason string `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	// CancelAtPeriodEnd defers the actual expiry to the end of the current period
	CancelAtPeriodEnd bool `db:"cancel_at_period_end" json:"cancel_at_period_end"`

	// EndedAt is the date the subscription terminally expired
	EndedAt *time.Time `db:"ended_at" json:"ended_at,omitempty"`

	// PausedAt is the date the subscription was paused
	PausedAt *time.Time `db:"paused_at" json:"paused_at,omitempty"`

	// PauseReason is the caller-supplied reason for pausing
	PauseReason string `db:"pause_reason" json:"pause_reason,omitempty"`

	// ResumeAt optionally schedules an automatic resume
	ResumeAt *time.Time `db:"resume_at" json:"resume_at,omitempty"`

	types.BaseModel
}

// IsBillable reports whether the subscription participates in recurring
// billing at all
func (s *Subscription) IsBillable() bool {
	switch s.SubscriptionStatus {
	case types.SubscriptionStatusTrialing,
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPastDue:
		return true
	}
	return false
}

// SubscriptionAddon is an addon attached to a subscription with price and
// quantity snapshotted at attach time. At most one active row may exist per
// (subscription, addon) pair.
type SubscriptionAddon struct {
	ID             string          `db:"id" json:"id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	AddonID        string          `db:"addon_id" json:"addon_id"`
	AddonName      string          `db:"addon_name" json:"addon_name"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Quantity       int             `db:"quantity" json:"quantity"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	EndDate        *time.Time      `db:"end_date" json:"end_date,omitempty"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	types.BaseModel
}

// Amount is the addon's recurring charge: snapshot price times quantity
func (a *SubscriptionAddon) Amount() decimal.Decimal {
	return a.Price.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

// SubscriptionPeriod records one billing cycle lived through, its billed
// amount and outcome. Created only by subscription creation and the billing
// engine.
type SubscriptionPeriod struct {
	ID             string                         `db:"id" json:"id"`
	SubscriptionID string                         `db:"subscription_id" json:"subscription_id"`
	StartDate      time.Time                      `db:"start_date" json:"start_date"`
	EndDate        time.Time                      `db:"end_date" json:"end_date"`
	Amount         decimal.Decimal                `db:"amount" json:"amount"`
	PeriodStatus   types.SubscriptionPeriodStatus `db:"period_status" json:"period_status"`
	InvoiceID      *string                        `db:"invoice_id" json:"invoice_id,omitempty"`
	types.BaseModel
}
