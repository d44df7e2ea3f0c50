package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/api/dto"
	"github.com/vidinfra/subflow/internal/domain/proration"
	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// SubscriptionService owns the subscription state machine. Every transition
// validates the current state before mutating and fails with a conflict
// naming the required state; missing entities fail not-found.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ReactivateSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	PauseSubscription(ctx context.Context, id string, req dto.PauseSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ChangePlan(ctx context.Context, id string, req dto.ChangePlanRequest) (*dto.SubscriptionResponse, error)
	AddAddon(ctx context.Context, subscriptionID string, req dto.AddAddonRequest) (*dto.SubscriptionAddonResponse, error)
	RemoveAddon(ctx context.Context, subscriptionAddonID string) error

	// ProcessCancelledExpirations expires cancelled subscriptions whose paid
	// period has run out. Scheduled trigger body; crosses tenants.
	ProcessCancelledExpirations(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error)
	// ProcessScheduledResumes resumes paused subscriptions whose scheduled
	// resume time has arrived. Scheduled trigger body; crosses tenants.
	ProcessScheduledResumes(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, ierr.NewError("plan is not active").
			WithHint("Only active plans accept new subscriptions").
			WithReportableDetails(map[string]any{"plan_id": plan.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	start := time.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	trialDays := plan.TrialDays
	if req.TrialDays != nil {
		trialDays = *req.TrialDays
	}

	sub := &domainSub.Subscription{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:    req.CustomerID,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		Price:         plan.Price,
		Currency:      plan.Currency,
		Interval:      plan.Interval,
		IntervalCount: plan.IntervalCount,
		StartDate:     start,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}

	periodAmount := plan.Price
	if trialDays > 0 {
		trialEnd := start.AddDate(0, 0, trialDays)
		sub.SubscriptionStatus = types.SubscriptionStatusTrialing
		sub.TrialStart = &start
		sub.TrialEnd = &trialEnd
		sub.CurrentPeriodStart = start
		sub.CurrentPeriodEnd = trialEnd
		sub.NextBillingDate = trialEnd
		periodAmount = decimal.Zero
	} else {
		periodEnd, err := types.NextBillingDate(start, plan.IntervalCount, plan.Interval)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Could not compute the first billing period").
				Mark(ierr.ErrValidation)
		}
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.CurrentPeriodStart = start
		sub.CurrentPeriodEnd = periodEnd
		sub.NextBillingDate = periodEnd
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	period := &domainSub.SubscriptionPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_PERIOD),
		SubscriptionID: sub.ID,
		StartDate:      sub.CurrentPeriodStart,
		EndDate:        sub.CurrentPeriodEnd,
		Amount:         periodAmount,
		PeriodStatus:   types.PeriodStatusPending,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := s.PeriodRepo.Create(ctx, period); err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"plan_id", sub.PlanID,
		"status", sub.SubscriptionStatus,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventSubscriptionCreated, map[string]any{
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
		"plan_id":         sub.PlanID,
		"status":          sub.SubscriptionStatus,
	}); err != nil {
		s.Logger.Errorw("failed to publish subscription created event", "error", err, "subscription_id", sub.ID)
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	if id == "" {
		return nil, ierr.NewError("subscription ID is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	addons, err := s.SubAddonRepo.ListBySubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	response := &dto.SubscriptionResponse{Subscription: sub}
	for _, a := range addons {
		response.Addons = append(response.Addons, &dto.SubscriptionAddonResponse{SubscriptionAddon: a})
	}
	return response, nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionResponse, len(subs))
	for i, sub := range subs {
		items[i] = &dto.SubscriptionResponse{Subscription: sub}
	}

	response := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus == types.SubscriptionStatusCancelled ||
		sub.SubscriptionStatus == types.SubscriptionStatusExpired {
		return nil, ierr.NewError("subscription is already cancelled").
			WithHint("Only a subscription that is not cancelled or expired can be cancelled").
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	now := time.Now().UTC()
	sub.CancelledAt = &now
	sub.CancellationReason = req.Reason

	if req.Immediate {
		sub.SubscriptionStatus = types.SubscriptionStatusExpired
		sub.EndedAt = &now
		sub.CancelAtPeriodEnd = false
	} else {
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		sub.CancelAtPeriodEnd = true
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled subscription",
		"subscription_id", id,
		"immediate", req.Immediate,
		"reason", req.Reason,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventSubscriptionCancelled, map[string]any{
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
		"immediate":       req.Immediate,
		"reason":          req.Reason,
	}); err != nil {
		s.Logger.Errorw("failed to publish subscription cancelled event", "error", err, "subscription_id", sub.ID)
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ReactivateSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus != types.SubscriptionStatusCancelled {
		return nil, ierr.NewError("subscription is not cancelled").
			WithHint("Only a cancelled subscription can be reactivated").
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	if !sub.CurrentPeriodEnd.After(time.Now().UTC()) {
		return nil, ierr.NewError("paid period has ended").
			WithHint("A cancelled subscription can only be reactivated before its current period ends").
			WithReportableDetails(map[string]any{
				"subscription_id":    id,
				"current_period_end": sub.CurrentPeriodEnd,
			}).
			Mark(ierr.ErrConflict)
	}

	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.CancelAtPeriodEnd = false
	sub.CancelledAt = nil
	sub.CancellationReason = ""

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("reactivated subscription", "subscription_id", id)

	if err := s.Publisher.Publish(ctx, types.WebhookEventSubscriptionReactivated, map[string]any{
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
	}); err != nil {
		s.Logger.Errorw("failed to publish subscription reactivated event", "error", err, "subscription_id", sub.ID)
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, id string, req dto.PauseSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not active").
			WithHint("Only an active subscription can be paused").
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	now := time.Now().UTC()
	sub.SubscriptionStatus = types.SubscriptionStatusPaused
	sub.PausedAt = &now
	sub.PauseReason = req.Reason
	sub.ResumeAt = req.ResumeAt

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("paused subscription",
		"subscription_id", id,
		"resume_at", req.ResumeAt,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventSubscriptionPaused, map[string]any{
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
		"reason":          req.Reason,
	}); err != nil {
		s.Logger.Errorw("failed to publish subscription paused event", "error", err, "subscription_id", sub.ID)
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resume(ctx, sub)
}

func (s *subscriptionService) resume(ctx context.Context, sub *domainSub.Subscription) (*dto.SubscriptionResponse, error) {
	if sub.SubscriptionStatus != types.SubscriptionStatusPaused {
		return nil, ierr.NewError("subscription is not paused").
			WithHint("Only a paused subscription can be resumed").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.PausedAt = nil
	sub.PauseReason = ""
	sub.ResumeAt = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("resumed subscription", "subscription_id", sub.ID)

	if err := s.Publisher.Publish(ctx, types.WebhookEventSubscriptionResumed, map[string]any{
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
	}); err != nil {
		s.Logger.Errorw("failed to publish subscription resumed event", "error", err, "subscription_id", sub.ID)
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ChangePlan(ctx context.Context, id string, req dto.ChangePlanRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not active").
			WithHint("Only an active subscription can change plans").
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	newPlan, err := s.PlanRepo.Get(ctx, req.NewPlanID)
	if err != nil {
		return nil, err
	}
	if !newPlan.IsActive() {
		return nil, ierr.NewError("target plan is not active").
			WithHint("The target plan must be active").
			WithReportableDetails(map[string]any{"plan_id": newPlan.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
	if newPlan.ID == sub.PlanID {
		return nil, ierr.NewError("subscription is already on this plan").
			WithHint("Choose a different plan to change to").
			WithReportableDetails(map[string]any{"plan_id": newPlan.ID}).
			Mark(ierr.ErrConflict)
	}

	now := time.Now().UTC()
	oldPlanID := sub.PlanID
	oldAmount := sub.Price

	var prorationAmount decimal.Decimal
	if req.Prorate {
		result, err := s.Proration.Calculate(ctx, prorationParams(sub, newPlan.Price, now))
		if err != nil {
			return nil, err
		}
		prorationAmount = result.Amount
	}

	sub.PlanID = newPlan.ID
	sub.PlanName = newPlan.Name
	sub.Price = newPlan.Price
	sub.Currency = newPlan.Currency
	sub.Interval = newPlan.Interval
	sub.IntervalCount = newPlan.IntervalCount

	if req.Immediate {
		periodEnd, err := types.NextBillingDate(now, newPlan.IntervalCount, newPlan.Interval)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Could not compute the new billing period").
				Mark(ierr.ErrValidation)
		}
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = periodEnd
		sub.NextBillingDate = periodEnd
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if req.Immediate {
		period := &domainSub.SubscriptionPeriod{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_PERIOD),
			SubscriptionID: sub.ID,
			StartDate:      sub.CurrentPeriodStart,
			EndDate:        sub.CurrentPeriodEnd,
			Amount:         sub.Price,
			PeriodStatus:   types.PeriodStatusPending,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		if err := s.PeriodRepo.Create(ctx, period); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("changed subscription plan",
		"subscription_id", id,
		"old_plan_id", oldPlanID,
		"new_plan_id", newPlan.ID,
		"immediate", req.Immediate,
		"proration_amount", prorationAmount,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventSubscriptionPlanChanged, map[string]any{
		"subscription_id":  sub.ID,
		"customer_id":      sub.CustomerID,
		"old_plan_id":      oldPlanID,
		"new_plan_id":      newPlan.ID,
		"old_price":        oldAmount,
		"new_price":        newPlan.Price,
		"immediate":        req.Immediate,
		"proration_amount": prorationAmount,
	}); err != nil {
		s.Logger.Errorw("failed to publish plan changed event", "error", err, "subscription_id", sub.ID)
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) AddAddon(ctx context.Context, subscriptionID string, req dto.AddAddonRequest) (*dto.SubscriptionAddonResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not active").
			WithHint("Addons can only be attached to an active subscription").
			WithReportableDetails(map[string]any{
				"subscription_id": subscriptionID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	addon, err := s.AddonRepo.Get(ctx, req.AddonID)
	if err != nil {
		return nil, err
	}
	if addon.PlanID != sub.PlanID {
		return nil, ierr.NewError("addon belongs to a different plan").
			WithHint("Only addons of the subscription's current plan can be attached").
			WithReportableDetails(map[string]any{
				"addon_id":   addon.ID,
				"addon_plan": addon.PlanID,
				"sub_plan":   sub.PlanID,
			}).
			Mark(ierr.ErrValidation)
	}

	existing, err := s.SubAddonRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if lo.ContainsBy(existing, func(sa *domainSub.SubscriptionAddon) bool {
		return sa.AddonID == addon.ID && sa.IsActive
	}) {
		return nil, ierr.NewError("addon is already attached").
			WithHint("At most one active attachment per addon is allowed").
			WithReportableDetails(map[string]any{
				"subscription_id": subscriptionID,
				"addon_id":        addon.ID,
			}).
			Mark(ierr.ErrConflict)
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if addon.FixedQuantity != nil {
		quantity = *addon.FixedQuantity
	}

	subAddon := &domainSub.SubscriptionAddon{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_ADDON),
		SubscriptionID: subscriptionID,
		AddonID:        addon.ID,
		AddonName:      addon.Name,
		Price:          addon.Price,
		Quantity:       quantity,
		StartDate:      time.Now().UTC(),
		IsActive:       true,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := s.SubAddonRepo.Create(ctx, subAddon); err != nil {
		return nil, err
	}

	s.Logger.Infow("attached addon",
		"subscription_id", subscriptionID,
		"addon_id", addon.ID,
		"quantity", quantity,
	)

	return &dto.SubscriptionAddonResponse{SubscriptionAddon: subAddon}, nil
}

func (s *subscriptionService) RemoveAddon(ctx context.Context, subscriptionAddonID string) error {
	subAddon, err := s.SubAddonRepo.Get(ctx, subscriptionAddonID)
	if err != nil {
		return err
	}

	if !subAddon.IsActive {
		return ierr.NewError("addon attachment is already ended").
			WithHint("The addon has already been removed from the subscription").
			WithReportableDetails(map[string]any{"subscription_addon_id": subscriptionAddonID}).
			Mark(ierr.ErrConflict)
	}

	// Soft end: invoice line items already generated from this attachment
	// stay untouched
	now := time.Now().UTC()
	subAddon.IsActive = false
	subAddon.EndDate = &now

	if err := s.SubAddonRepo.Update(ctx, subAddon); err != nil {
		return err
	}

	s.Logger.Infow("removed addon",
		"subscription_addon_id", subscriptionAddonID,
		"subscription_id", subAddon.SubscriptionID,
	)
	return nil
}

func prorationParams(sub *domainSub.Subscription, newAmount decimal.Decimal, changeDate time.Time) proration.Params {
	return proration.Params{
		SubscriptionID:     sub.ID,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		ChangeDate:         changeDate,
		OldAmount:          sub.Price,
		NewAmount:          newAmount,
	}
}

// ProcessCancelledExpirations moves cancelled subscriptions to expired once
// their current period has passed. Per-item failures are recorded and never
// halt the batch.
func (s *subscriptionService) ProcessCancelledExpirations(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error) {
	subs, err := s.SubRepo.ListAllTenant(ctx, &types.SubscriptionFilter{
		QueryFilter:            types.NewNoLimitQueryFilter(),
		SubscriptionStatus:     []types.SubscriptionStatus{types.SubscriptionStatusCancelled},
		CancelAtPeriodEnd:      lo.ToPtr(true),
		CurrentPeriodEndBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.BatchRunResponse{Total: len(subs), Errors: make(map[string]string)}
	for _, sub := range subs {
		tenantCtx := types.SetTenantID(ctx, sub.TenantID)

		ended := now
		sub.SubscriptionStatus = types.SubscriptionStatusExpired
		sub.EndedAt = &ended

		if err := s.SubRepo.Update(tenantCtx, sub); err != nil {
			s.Logger.Errorw("failed to expire cancelled subscription",
				"error", err,
				"subscription_id", sub.ID,
			)
			response.Failed++
			response.Errors[sub.ID] = err.Error()
			continue
		}

		s.Logger.Infow("expired cancelled subscription", "subscription_id", sub.ID)
		response.Succeeded++
	}

	return response, nil
}

// ProcessScheduledResumes resumes paused subscriptions whose resume_at has
// arrived
func (s *subscriptionService) ProcessScheduledResumes(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error) {
	subs, err := s.SubRepo.ListAllTenant(ctx, &types.SubscriptionFilter{
		QueryFilter:        types.NewNoLimitQueryFilter(),
		SubscriptionStatus: []types.SubscriptionStatus{types.SubscriptionStatusPaused},
		ResumeAtBefore:     &now,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.BatchRunResponse{Total: len(subs), Errors: make(map[string]string)}
	for _, sub := range subs {
		tenantCtx := types.SetTenantID(ctx, sub.TenantID)

		if _, err := s.resume(tenantCtx, sub); err != nil {
			s.Logger.Errorw("failed to resume subscription",
				"error", err,
				"subscription_id", sub.ID,
			)
			response.Failed++
			response.Errors[sub.ID] = err.Error()
			continue
		}
		response.Succeeded++
	}

	return response, nil
}
