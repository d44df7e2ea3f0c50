package types

import (
	"time"

	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the status of a subscription. A subscription only
// ever moves forward through these; expired is terminal.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusPaused,
		SubscriptionStatusCancelled,
		SubscriptionStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether no further transition may leave this status
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusExpired
}

// SubscriptionPeriodStatus tracks the billing outcome of one lived-through
// billing cycle
type SubscriptionPeriodStatus string

const (
	PeriodStatusPending SubscriptionPeriodStatus = "pending"
	PeriodStatusBilled  SubscriptionPeriodStatus = "billed"
	PeriodStatusPaid    SubscriptionPeriodStatus = "paid"
)

func (s SubscriptionPeriodStatus) String() string {
	return string(s)
}

func (s SubscriptionPeriodStatus) Validate() error {
	allowed := []SubscriptionPeriodStatus{
		PeriodStatusPending,
		PeriodStatusBilled,
		PeriodStatusPaid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription period status").
			WithHint("Invalid subscription period status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionFilter represents filters for subscription queries
type SubscriptionFilter struct {
	*QueryFilter
	*TimeRangeFilter

	SubscriptionIDs []string `json:"subscription_ids,omitempty" form:"subscription_ids"`
	// CustomerID filters by customer ID
	CustomerID string `json:"customer_id,omitempty" form:"customer_id"`
	// PlanID filters by plan ID
	PlanID string `json:"plan_id,omitempty" form:"plan_id"`
	// SubscriptionStatus filters by subscription status
	SubscriptionStatus []SubscriptionStatus `json:"subscription_status,omitempty" form:"subscription_status"`
	// NextBillingBefore selects subscriptions whose next billing date is at
	// or before the given instant. Used by the due-invoice batch.
	NextBillingBefore *time.Time `json:"next_billing_before,omitempty" form:"next_billing_before"`
	// CurrentPeriodEndBefore selects subscriptions whose current period has
	// already ended at the given instant
	CurrentPeriodEndBefore *time.Time `json:"current_period_end_before,omitempty" form:"current_period_end_before"`
	// TrialEndBefore selects subscriptions whose trial has ended at the
	// given instant
	TrialEndBefore *time.Time `json:"trial_end_before,omitempty" form:"trial_end_before"`
	// CancelAtPeriodEnd filters on the deferred-cancellation flag
	CancelAtPeriodEnd *bool `json:"cancel_at_period_end,omitempty" form:"cancel_at_period_end"`
	// ResumeAtBefore selects paused subscriptions scheduled to resume at or
	// before the given instant
	ResumeAtBefore *time.Time `json:"resume_at_before,omitempty" form:"resume_at_before"`
	// CreatedBefore filters on creation time; used by churn analytics
	CreatedBefore *time.Time `json:"created_before,omitempty" form:"created_before"`
}

// NewSubscriptionFilter creates a new SubscriptionFilter with default values
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitSubscriptionFilter creates a new SubscriptionFilter with no pagination limits
func NewNoLimitSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the subscription filter
func (f *SubscriptionFilter) Validate() error {
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

	for _, status := range f.SubscriptionStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetLimit implements BaseFilter interface
func (f *SubscriptionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *SubscriptionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *SubscriptionFilter) GetStatus() Status {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// GetSort implements BaseFilter interface
func (f *SubscriptionFilter) GetSort() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *SubscriptionFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

func (f *SubscriptionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
