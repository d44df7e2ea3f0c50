package dto

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/domain/plan"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
)

type CreatePlanRequest struct {
	Name          string                `json:"name" validate:"required"`
	LookupKey     string                `json:"lookup_key"`
	Description   string                `json:"description"`
	Price         decimal.Decimal       `json:"price"`
	Currency      string                `json:"currency" validate:"required,len=3"`
	Interval      types.BillingInterval `json:"interval" validate:"required"`
	IntervalCount int                   `json:"interval_count" validate:"omitempty,min=1"`
	TrialDays     int                   `json:"trial_days" validate:"omitempty,min=0"`
	DisplayOrder  int                   `json:"display_order"`
	Limits        *PlanLimitsRequest    `json:"limits,omitempty"`
}

// PlanLimitsRequest carries the usage thresholds configured on a plan. Any
// limit left nil stays unlimited.
type PlanLimitsRequest struct {
	MaxUsers    *decimal.Decimal           `json:"max_users,omitempty"`
	MaxProducts *decimal.Decimal           `json:"max_products,omitempty"`
	MaxStorage  *decimal.Decimal           `json:"max_storage,omitempty"`
	Custom      map[string]decimal.Decimal `json:"custom,omitempty"`
}

func (r *CreatePlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if err := r.Interval.Validate(); err != nil {
		return err
	}

	if r.Price.IsNegative() {
		return ierr.NewError("price must be non negative").
			WithHint("Please provide a non negative plan price").
			WithReportableDetails(map[string]any{"price": r.Price}).
			Mark(ierr.ErrValidation)
	}

	if r.Limits != nil {
		if err := r.Limits.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (r *PlanLimitsRequest) Validate() error {
	for metric, threshold := range r.toLimits().Configured() {
		if threshold.IsNegative() {
			return ierr.NewError("limit must be non negative").
				WithHint("Usage limits can not be negative").
				WithReportableDetails(map[string]any{
					"metric": metric,
					"limit":  threshold,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func (r *PlanLimitsRequest) toLimits() plan.Limits {
	if r == nil {
		return plan.Limits{}
	}
	return plan.Limits{
		MaxUsers:    r.MaxUsers,
		MaxProducts: r.MaxProducts,
		MaxStorage:  r.MaxStorage,
		Custom:      r.Custom,
	}
}

func (r *CreatePlanRequest) ToPlan(ctx context.Context) *plan.Plan {
	intervalCount := r.IntervalCount
	if intervalCount == 0 {
		intervalCount = 1
	}

	return &plan.Plan{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:          r.Name,
		LookupKey:     r.LookupKey,
		Description:   r.Description,
		Price:         r.Price,
		Currency:      r.Currency,
		Interval:      r.Interval,
		IntervalCount: intervalCount,
		TrialDays:     r.TrialDays,
		DisplayOrder:  r.DisplayOrder,
		Limits:        r.Limits.toLimits(),
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

type UpdatePlanRequest struct {
	Name          *string                `json:"name,omitempty"`
	LookupKey     *string                `json:"lookup_key,omitempty"`
	Description   *string                `json:"description,omitempty"`
	Price         *decimal.Decimal       `json:"price,omitempty"`
	Currency      *string                `json:"currency,omitempty" validate:"omitempty,len=3"`
	Interval      *types.BillingInterval `json:"interval,omitempty"`
	IntervalCount *int                   `json:"interval_count,omitempty" validate:"omitempty,min=1"`
	TrialDays     *int                   `json:"trial_days,omitempty" validate:"omitempty,min=0"`
	DisplayOrder  *int                   `json:"display_order,omitempty"`
	Limits        *PlanLimitsRequest     `json:"limits,omitempty"`
}

func (r *UpdatePlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.Interval != nil {
		if err := r.Interval.Validate(); err != nil {
			return err
		}
	}

	if r.Price != nil && r.Price.IsNegative() {
		return ierr.NewError("price must be non negative").
			WithHint("Please provide a non negative plan price").
			WithReportableDetails(map[string]any{"price": *r.Price}).
			Mark(ierr.ErrValidation)
	}

	if r.Limits != nil {
		if err := r.Limits.Validate(); err != nil {
			return err
		}
	}

	return nil
}

type PlanResponse struct {
	*plan.Plan
	Addons []*AddonResponse `json:"addons,omitempty"`
}

// ListPlansResponse represents a paginated plan listing
type ListPlansResponse = types.ListResponse[*PlanResponse]

// PlanStatisticsResponse summarizes a plan's commercial health
type PlanStatisticsResponse struct {
	PlanID                string                           `json:"plan_id"`
	PlanName              string                           `json:"plan_name"`
	TotalSubscriptions    int                              `json:"total_subscriptions"`
	SubscriptionsByStatus map[types.SubscriptionStatus]int `json:"subscriptions_by_status"`
	MRR                   decimal.Decimal                  `json:"mrr"`
	// ConversionRate is active subscriptions over all subscriptions ever
	// created on the plan, as a percentage
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// ComparePlansResponse describes a prospective plan change
type ComparePlansResponse struct {
	CurrentPlan   *PlanResponse   `json:"current_plan"`
	TargetPlan    *PlanResponse   `json:"target_plan"`
	PriceDelta    decimal.Decimal `json:"price_delta"`
	PercentChange decimal.Decimal `json:"percent_change"`
	IsUpgrade     bool            `json:"is_upgrade"`
}
