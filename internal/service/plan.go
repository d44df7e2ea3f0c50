package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/api/dto"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// PlanService manages the tenant's plan catalog: the plans customers can
// subscribe to and the addons attachable to them.
type PlanService interface {
	CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error)
	UpdatePlan(ctx context.Context, id string, req dto.UpdatePlanRequest) (*dto.PlanResponse, error)
	SetPlanActive(ctx context.Context, id string, active bool) (*dto.PlanResponse, error)
	DeletePlan(ctx context.Context, id string) error

	CreateAddon(ctx context.Context, req dto.CreateAddonRequest) (*dto.AddonResponse, error)
	UpdateAddon(ctx context.Context, id string, req dto.UpdateAddonRequest) (*dto.AddonResponse, error)
	DeleteAddon(ctx context.Context, id string) error

	GetPlanStatistics(ctx context.Context, id string) (*dto.PlanStatisticsResponse, error)
	ComparePlans(ctx context.Context, currentPlanID, targetPlanID string) (*dto.ComparePlansResponse, error)
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan := req.ToPlan(ctx)
	if err := s.PlanRepo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.Logger.Infow("created plan",
		"plan_id", plan.ID,
		"name", plan.Name,
		"interval", plan.Interval,
	)

	return &dto.PlanResponse{Plan: plan}, nil
}

func (s *planService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	if id == "" {
		return nil, ierr.NewError("plan ID is required").
			WithHint("Plan ID is required").
			Mark(ierr.ErrValidation)
	}

	plan, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	addons, err := s.AddonRepo.List(ctx, &types.AddonFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		PlanID:      id,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.PlanResponse{Plan: plan}
	for _, a := range addons {
		response.Addons = append(response.Addons, &dto.AddonResponse{Addon: a})
	}
	return response, nil
}

func (s *planService) ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error) {
	if filter == nil {
		filter = types.NewPlanFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.PlanRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PlanResponse, len(plans))
	for i, p := range plans {
		items[i] = &dto.PlanResponse{Plan: p}
	}

	response := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *planService) UpdatePlan(ctx context.Context, id string, req dto.UpdatePlanRequest) (*dto.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Catalog edits never touch running subscriptions; they only change the
	// terms snapshotted by future ones.
	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.LookupKey != nil {
		plan.LookupKey = *req.LookupKey
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.Price != nil {
		plan.Price = *req.Price
	}
	if req.Currency != nil {
		plan.Currency = *req.Currency
	}
	if req.Interval != nil {
		plan.Interval = *req.Interval
	}
	if req.IntervalCount != nil {
		plan.IntervalCount = *req.IntervalCount
	}
	if req.TrialDays != nil {
		plan.TrialDays = *req.TrialDays
	}
	if req.DisplayOrder != nil {
		plan.DisplayOrder = *req.DisplayOrder
	}
	if req.Limits != nil {
		plan.Limits.MaxUsers = req.Limits.MaxUsers
		plan.Limits.MaxProducts = req.Limits.MaxProducts
		plan.Limits.MaxStorage = req.Limits.MaxStorage
		plan.Limits.Custom = req.Limits.Custom
	}

	if err := s.PlanRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	return &dto.PlanResponse{Plan: plan}, nil
}

func (s *planService) SetPlanActive(ctx context.Context, id string, active bool) (*dto.PlanResponse, error) {
	plan, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if plan.Status == types.StatusDeleted {
		return nil, ierr.NewError("plan is deleted").
			WithHint("A deleted plan can not be activated or archived").
			WithReportableDetails(map[string]any{"plan_id": id}).
			Mark(ierr.ErrInvalidOperation)
	}

	if active {
		plan.Status = types.StatusPublished
	} else {
		plan.Status = types.StatusArchived
	}

	if err := s.PlanRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	s.Logger.Infow("set plan active state", "plan_id", id, "active", active)
	return &dto.PlanResponse{Plan: plan}, nil
}

func (s *planService) DeletePlan(ctx context.Context, id string) error {
	if _, err := s.PlanRepo.Get(ctx, id); err != nil {
		return err
	}

	// A plan with live subscriptions must stay in the catalog: its terms are
	// the reference for trial conversion and future renewals.
	live, err := s.SubRepo.Count(ctx, &types.SubscriptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		PlanID:      id,
		SubscriptionStatus: []types.SubscriptionStatus{
			types.SubscriptionStatusTrialing,
			types.SubscriptionStatusActive,
		},
	})
	if err != nil {
		return err
	}
	if live > 0 {
		return ierr.NewError("plan has active subscriptions").
			WithHint("Cancel or migrate the plan's subscriptions before deleting it").
			WithReportableDetails(map[string]any{
				"plan_id":              id,
				"active_subscriptions": live,
			}).
			Mark(ierr.ErrConflict)
	}

	if err := s.PlanRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.Logger.Infow("deleted plan", "plan_id", id)
	return nil
}

func (s *planService) CreateAddon(ctx context.Context, req dto.CreateAddonRequest) (*dto.AddonResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, ierr.NewError("plan is not active").
			WithHint("Addons can only be created on active plans").
			WithReportableDetails(map[string]any{"plan_id": req.PlanID}).
			Mark(ierr.ErrInvalidOperation)
	}

	addon := req.ToAddon(ctx)
	if err := s.AddonRepo.Create(ctx, addon); err != nil {
		return nil, err
	}

	s.Logger.Infow("created addon", "addon_id", addon.ID, "plan_id", addon.PlanID)
	return &dto.AddonResponse{Addon: addon}, nil
}

func (s *planService) UpdateAddon(ctx context.Context, id string, req dto.UpdateAddonRequest) (*dto.AddonResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	addon, err := s.AddonRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		addon.Name = *req.Name
	}
	if req.Description != nil {
		addon.Description = *req.Description
	}
	if req.Price != nil {
		addon.Price = *req.Price
	}
	if req.FixedQuantity != nil {
		addon.FixedQuantity = req.FixedQuantity
	}

	if err := s.AddonRepo.Update(ctx, addon); err != nil {
		return nil, err
	}

	return &dto.AddonResponse{Addon: addon}, nil
}

func (s *planService) DeleteAddon(ctx context.Context, id string) error {
	if _, err := s.AddonRepo.Get(ctx, id); err != nil {
		return err
	}

	attached, err := s.SubAddonRepo.ListActiveByAddon(ctx, id)
	if err != nil {
		return err
	}
	if len(attached) > 0 {
		return ierr.NewError("addon is attached to subscriptions").
			WithHint("Remove the addon from its subscriptions before deleting it").
			WithReportableDetails(map[string]any{
				"addon_id":             id,
				"active_subscriptions": len(attached),
			}).
			Mark(ierr.ErrConflict)
	}

	if err := s.AddonRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.Logger.Infow("deleted addon", "addon_id", id)
	return nil
}

func (s *planService) GetPlanStatistics(ctx context.Context, id string) (*dto.PlanStatisticsResponse, error) {
	plan, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		PlanID:      id,
	})
	if err != nil {
		return nil, err
	}

	byStatus := make(map[types.SubscriptionStatus]int)
	mrr := decimal.Zero
	active := 0
	for _, sub := range subs {
		byStatus[sub.SubscriptionStatus]++
		if sub.SubscriptionStatus == types.SubscriptionStatusActive {
			active++
		}

		// Only billable subscriptions contribute recurring revenue
		if sub.SubscriptionStatus != types.SubscriptionStatusActive &&
			sub.SubscriptionStatus != types.SubscriptionStatusTrialing {
			continue
		}

		mrr = mrr.Add(sub.Interval.MonthlyAmount(sub.Price, sub.IntervalCount))

		attached, err := s.SubAddonRepo.ListBySubscription(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		for _, sa := range attached {
			if !sa.IsActive {
				continue
			}
			// Addons normalize by their own catalog interval
			catalogAddon, err := s.AddonRepo.Get(ctx, sa.AddonID)
			if err != nil {
				if ierr.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			mrr = mrr.Add(catalogAddon.Interval.MonthlyAmount(sa.Amount(), catalogAddon.IntervalCount))
		}
	}

	conversionRate := decimal.Zero
	if len(subs) > 0 {
		conversionRate = decimal.NewFromInt(int64(active)).
			Div(decimal.NewFromInt(int64(len(subs)))).
			Mul(decimal.NewFromInt(100))
	}

	return &dto.PlanStatisticsResponse{
		PlanID:                plan.ID,
		PlanName:              plan.Name,
		TotalSubscriptions:    len(subs),
		SubscriptionsByStatus: byStatus,
		MRR:                   mrr,
		ConversionRate:        conversionRate,
	}, nil
}

func (s *planService) ComparePlans(ctx context.Context, currentPlanID, targetPlanID string) (*dto.ComparePlansResponse, error) {
	if currentPlanID == targetPlanID {
		return nil, ierr.NewError("plans must differ").
			WithHint("Comparing a plan with itself is not meaningful").
			Mark(ierr.ErrValidation)
	}

	current, err := s.PlanRepo.Get(ctx, currentPlanID)
	if err != nil {
		return nil, err
	}
	target, err := s.PlanRepo.Get(ctx, targetPlanID)
	if err != nil {
		return nil, err
	}

	// Compare on the monthly-normalized amounts so a yearly and a monthly
	// plan rank sensibly against each other
	currentMonthly := current.Interval.MonthlyAmount(current.Price, current.IntervalCount)
	targetMonthly := target.Interval.MonthlyAmount(target.Price, target.IntervalCount)
	delta := targetMonthly.Sub(currentMonthly)

	percentChange := decimal.Zero
	if !currentMonthly.IsZero() {
		percentChange = delta.Div(currentMonthly).Mul(decimal.NewFromInt(100))
	}

	return &dto.ComparePlansResponse{
		CurrentPlan:   &dto.PlanResponse{Plan: current},
		TargetPlan:    &dto.PlanResponse{Plan: target},
		PriceDelta:    delta,
		PercentChange: percentChange,
		IsUpgrade:     delta.IsPositive(),
	}, nil
}
