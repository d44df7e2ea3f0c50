package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/api/dto"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// AnalyticsService answers the business-health questions of the engine:
// recurring revenue and churn. Everything here is derived, never stored.
type AnalyticsService interface {
	GetMRRBreakdown(ctx context.Context) (*dto.MRRBreakdownResponse, error)
	GetChurnRate(ctx context.Context, windowStart, windowEnd time.Time) (*dto.ChurnRateResponse, error)
}

type analyticsService struct {
	ServiceParams
}

func NewAnalyticsService(params ServiceParams) AnalyticsService {
	return &analyticsService{ServiceParams: params}
}

// GetMRRBreakdown normalizes every billable subscription and its active
// addons to a monthly amount. A yearly 1200 contributes 100; an addon is
// normalized by its own catalog interval, not the subscription's.
func (s *analyticsService) GetMRRBreakdown(ctx context.Context) (*dto.MRRBreakdownResponse, error) {
	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		SubscriptionStatus: []types.SubscriptionStatus{
			types.SubscriptionStatusActive,
			types.SubscriptionStatusTrialing,
		},
	})
	if err != nil {
		return nil, err
	}

	response := &dto.MRRBreakdownResponse{
		TotalMRR: decimal.Zero,
		AddonMRR: decimal.Zero,
	}
	byPlan := make(map[string]*dto.PlanMRRItem)

	for _, sub := range subs {
		item, ok := byPlan[sub.PlanID]
		if !ok {
			item = &dto.PlanMRRItem{
				PlanID:   sub.PlanID,
				PlanName: sub.PlanName,
				MRR:      decimal.Zero,
			}
			byPlan[sub.PlanID] = item
			response.ByPlan = append(response.ByPlan, item)
		}
		item.SubscriptionCount++

		subMRR := sub.Interval.MonthlyAmount(sub.Price, sub.IntervalCount)
		item.MRR = item.MRR.Add(subMRR)
		response.TotalMRR = response.TotalMRR.Add(subMRR)

		addons, err := s.SubAddonRepo.ListBySubscription(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		for _, sa := range addons {
			if !sa.IsActive {
				continue
			}
			addonMRR, err := s.addonMonthlyAmount(ctx, sa.AddonID, sa.Price.Mul(decimal.NewFromInt(int64(sa.Quantity))))
			if err != nil {
				return nil, err
			}
			item.MRR = item.MRR.Add(addonMRR)
			response.AddonMRR = response.AddonMRR.Add(addonMRR)
			response.TotalMRR = response.TotalMRR.Add(addonMRR)
		}
	}

	return response, nil
}

// addonMonthlyAmount normalizes an attached addon's recurring amount by the
// addon's catalog interval. A catalog row missing entirely contributes
// nothing rather than failing the whole breakdown.
func (s *analyticsService) addonMonthlyAmount(ctx context.Context, addonID string, amount decimal.Decimal) (decimal.Decimal, error) {
	addon, err := s.AddonRepo.Get(ctx, addonID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return addon.Interval.MonthlyAmount(amount, addon.IntervalCount), nil
}

// GetChurnRate reports the fraction of subscriptions alive at the window's
// start that were cancelled or expired within the window
func (s *analyticsService) GetChurnRate(ctx context.Context, windowStart, windowEnd time.Time) (*dto.ChurnRateResponse, error) {
	if !windowEnd.After(windowStart) {
		return nil, ierr.NewError("invalid churn window").
			WithHint("Window end must be after window start").
			WithReportableDetails(map[string]any{
				"window_start": windowStart,
				"window_end":   windowEnd,
			}).
			Mark(ierr.ErrValidation)
	}

	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		CreatedBefore: &windowStart,
	})
	if err != nil {
		return nil, err
	}

	base := 0
	churned := 0
	for _, sub := range subs {
		// Alive at the window start: not yet cancelled or ended by then
		if sub.CancelledAt != nil && sub.CancelledAt.Before(windowStart) {
			continue
		}
		if sub.EndedAt != nil && sub.EndedAt.Before(windowStart) {
			continue
		}
		base++

		switch sub.SubscriptionStatus {
		case types.SubscriptionStatusCancelled, types.SubscriptionStatusExpired:
			churnedAt := sub.CancelledAt
			if churnedAt == nil {
				churnedAt = sub.EndedAt
			}
			if churnedAt != nil && !churnedAt.Before(windowStart) && !churnedAt.After(windowEnd) {
				churned++
			}
		}
	}

	rate := decimal.Zero
	if base > 0 {
		rate = decimal.NewFromInt(int64(churned)).
			Div(decimal.NewFromInt(int64(base))).
			Mul(decimal.NewFromInt(100))
	}

	return &dto.ChurnRateResponse{
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		BaseCount:    base,
		ChurnedCount: churned,
		ChurnRate:    rate,
	}, nil
}
