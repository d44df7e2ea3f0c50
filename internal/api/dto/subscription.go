package dto

import (
	"time"

	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
)

type CreateSubscriptionRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	PlanID     string `json:"plan_id" validate:"required"`
	// StartDate defaults to now when omitted
	StartDate *time.Time `json:"start_date,omitempty"`
	// TrialDays overrides the plan's trial length when set; zero disables
	// the trial entirely
	TrialDays *int              `json:"trial_days,omitempty" validate:"omitempty,min=0"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type CancelSubscriptionRequest struct {
	// Immediate expires the subscription right away instead of letting it
	// run out the paid period
	Immediate bool   `json:"immediate"`
	Reason    string `json:"reason"`
}

type PauseSubscriptionRequest struct {
	Reason string `json:"reason"`
	// ResumeAt optionally schedules an automatic resume
	ResumeAt *time.Time `json:"resume_at,omitempty"`
}

func (r *PauseSubscriptionRequest) Validate() error {
	if r.ResumeAt != nil && !r.ResumeAt.After(time.Now().UTC()) {
		return ierr.NewError("resume_at must be in the future").
			WithHint("Scheduled resume time must be after the pause itself").
			WithReportableDetails(map[string]any{"resume_at": r.ResumeAt}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type ChangePlanRequest struct {
	NewPlanID string `json:"new_plan_id" validate:"required"`
	// Immediate applies the new plan terms now; otherwise they take effect
	// at the next rollover
	Immediate bool `json:"immediate"`
	Prorate   bool `json:"prorate"`
}

func (r *ChangePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type AddAddonRequest struct {
	AddonID  string `json:"addon_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1"`
}

func (r *AddAddonRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type SubscriptionResponse struct {
	*domainSub.Subscription
	Addons []*SubscriptionAddonResponse `json:"addons,omitempty"`
}

type SubscriptionAddonResponse struct {
	*domainSub.SubscriptionAddon
}

type SubscriptionPeriodResponse struct {
	*domainSub.SubscriptionPeriod
}

// ListSubscriptionsResponse represents a paginated subscription listing
type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]

// BatchRunResponse summarizes one scheduled batch pass. Items that fail are
// recorded by id and never abort the rest of the batch.
type BatchRunResponse struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}
