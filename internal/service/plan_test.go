package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/vidinfra/subflow/internal/api/dto"
	"github.com/vidinfra/subflow/internal/domain/proration"
	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/locker"
	"github.com/vidinfra/subflow/internal/testutil"
	"github.com/vidinfra/subflow/internal/types"
)

type PlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PlanService
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.service = NewPlanService(ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		PlanRepo:     stores.PlanRepo,
		AddonRepo:    stores.AddonRepo,
		SubRepo:      stores.SubRepo,
		SubAddonRepo: stores.SubAddonRepo,
		PeriodRepo:   stores.PeriodRepo,
		InvoiceRepo:  stores.InvoiceRepo,
		SequenceRepo: stores.SequenceRepo,
		UsageRepo:    stores.UsageRepo,
		Publisher:    s.GetPublisher(),
		Locker:       locker.NewKeyedLocker(),
		Proration:    proration.NewNoProration(),
	})
}

func (s *PlanServiceSuite) createPlan(name string, price decimal.Decimal, interval types.BillingInterval) *dto.PlanResponse {
	resp, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:     name,
		Currency: "usd",
		Price:    price,
		Interval: interval,
	})
	s.NoError(err)
	s.NotNil(resp)
	return resp
}

func (s *PlanServiceSuite) TestCreatePlan() {
	s.Run("valid plan", func() {
		resp, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
			Name:      "Starter",
			Currency:  "usd",
			Price:     decimal.NewFromInt(29),
			Interval:  types.BillingIntervalMonthly,
			TrialDays: 14,
		})
		s.NoError(err)
		s.Equal("Starter", resp.Plan.Name)
		s.Equal(1, resp.Plan.IntervalCount)
		s.Equal(14, resp.Plan.TrialDays)
		s.True(resp.Plan.IsActive())
	})

	s.Run("missing name", func() {
		_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
			Currency: "usd",
			Interval: types.BillingIntervalMonthly,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("negative price", func() {
		_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
			Name:     "Broken",
			Currency: "usd",
			Price:    decimal.NewFromInt(-5),
			Interval: types.BillingIntervalMonthly,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("invalid interval", func() {
		_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
			Name:     "Broken",
			Currency: "usd",
			Interval: types.BillingInterval("fortnightly"),
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("negative limit", func() {
		_, err := s.service.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
			Name:     "Broken",
			Currency: "usd",
			Interval: types.BillingIntervalMonthly,
			Limits: &dto.PlanLimitsRequest{
				MaxUsers: lo.ToPtr(decimal.NewFromInt(-1)),
			},
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *PlanServiceSuite) TestGetPlan() {
	plan := s.createPlan("Pro", decimal.NewFromInt(100), types.BillingIntervalMonthly)

	for _, name := range []string{"Extra Seats", "Priority Support"} {
		_, err := s.service.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
			PlanID:   plan.Plan.ID,
			Name:     name,
			Price:    decimal.NewFromInt(10),
			Interval: types.BillingIntervalMonthly,
		})
		s.NoError(err)
	}

	s.Run("found with addons", func() {
		resp, err := s.service.GetPlan(s.GetContext(), plan.Plan.ID)
		s.NoError(err)
		s.Equal(plan.Plan.ID, resp.Plan.ID)
		s.Len(resp.Addons, 2)
	})

	s.Run("not found", func() {
		_, err := s.service.GetPlan(s.GetContext(), "plan_missing")
		s.Error(err)
		s.True(ierr.IsNotFound(err))
	})

	s.Run("empty id", func() {
		_, err := s.service.GetPlan(s.GetContext(), "")
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *PlanServiceSuite) TestListPlans() {
	s.createPlan("One", decimal.NewFromInt(10), types.BillingIntervalMonthly)
	s.createPlan("Two", decimal.NewFromInt(20), types.BillingIntervalMonthly)
	s.createPlan("Three", decimal.NewFromInt(30), types.BillingIntervalYearly)

	s.Run("default filter", func() {
		resp, err := s.service.ListPlans(s.GetContext(), nil)
		s.NoError(err)
		s.Equal(3, resp.Pagination.Total)
		s.Len(resp.Items, 3)
	})

	s.Run("paginated", func() {
		resp, err := s.service.ListPlans(s.GetContext(), &types.PlanFilter{
			QueryFilter: &types.QueryFilter{
				Limit:  lo.ToPtr(2),
				Offset: lo.ToPtr(0),
			},
		})
		s.NoError(err)
		s.Equal(3, resp.Pagination.Total)
		s.Len(resp.Items, 2)
		s.Equal(2, resp.Pagination.Limit)
	})
}

func (s *PlanServiceSuite) TestUpdatePlan() {
	plan := s.createPlan("Pro", decimal.NewFromInt(100), types.BillingIntervalMonthly)

	resp, err := s.service.UpdatePlan(s.GetContext(), plan.Plan.ID, dto.UpdatePlanRequest{
		Name:  lo.ToPtr("Pro Plus"),
		Price: lo.ToPtr(decimal.NewFromInt(120)),
	})
	s.NoError(err)
	s.Equal("Pro Plus", resp.Plan.Name)
	s.True(resp.Plan.Price.Equal(decimal.NewFromInt(120)))
	// Untouched fields keep their values
	s.Equal("usd", resp.Plan.Currency)
	s.Equal(types.BillingIntervalMonthly, resp.Plan.Interval)
}

func (s *PlanServiceSuite) TestSetPlanActive() {
	plan := s.createPlan("Pro", decimal.NewFromInt(100), types.BillingIntervalMonthly)

	s.Run("archive", func() {
		resp, err := s.service.SetPlanActive(s.GetContext(), plan.Plan.ID, false)
		s.NoError(err)
		s.Equal(types.StatusArchived, resp.Plan.Status)
		s.False(resp.Plan.IsActive())
	})

	s.Run("republish", func() {
		resp, err := s.service.SetPlanActive(s.GetContext(), plan.Plan.ID, true)
		s.NoError(err)
		s.True(resp.Plan.IsActive())
	})

	s.Run("deleted plan", func() {
		gone := s.createPlan("Gone", decimal.NewFromInt(5), types.BillingIntervalMonthly)
		s.NoError(s.service.DeletePlan(s.GetContext(), gone.Plan.ID))

		_, err := s.service.SetPlanActive(s.GetContext(), gone.Plan.ID, true)
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})
}

func (s *PlanServiceSuite) TestDeletePlan() {
	plan := s.createPlan("Pro", decimal.NewFromInt(100), types.BillingIntervalMonthly)

	sub := s.seedSubscription(plan.Plan.ID, types.SubscriptionStatusActive, decimal.NewFromInt(100), types.BillingIntervalMonthly)

	s.Run("blocked by live subscription", func() {
		err := s.service.DeletePlan(s.GetContext(), plan.Plan.ID)
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("deletable once subscriptions ended", func() {
		sub.SubscriptionStatus = types.SubscriptionStatusExpired
		s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

		s.NoError(s.service.DeletePlan(s.GetContext(), plan.Plan.ID))

		// Soft deleted: gone from listings but still resolvable by id
		list, err := s.service.ListPlans(s.GetContext(), nil)
		s.NoError(err)
		s.Equal(0, list.Pagination.Total)

		kept, err := s.GetStores().PlanRepo.Get(s.GetContext(), plan.Plan.ID)
		s.NoError(err)
		s.Equal(types.StatusDeleted, kept.Status)
	})
}

func (s *PlanServiceSuite) TestCreateAddon() {
	plan := s.createPlan("Pro", decimal.NewFromInt(100), types.BillingIntervalMonthly)

	s.Run("valid addon", func() {
		resp, err := s.service.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
			PlanID:        plan.Plan.ID,
			Name:          "Extra Storage",
			Price:         decimal.NewFromInt(25),
			Interval:      types.BillingIntervalMonthly,
			FixedQuantity: lo.ToPtr(3),
		})
		s.NoError(err)
		s.Equal(plan.Plan.ID, resp.Addon.PlanID)
		s.Equal(1, resp.Addon.IntervalCount)
		s.Equal(3, *resp.Addon.FixedQuantity)
	})

	s.Run("archived plan", func() {
		_, err := s.service.SetPlanActive(s.GetContext(), plan.Plan.ID, false)
		s.NoError(err)

		_, err = s.service.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
			PlanID:   plan.Plan.ID,
			Name:     "Too Late",
			Price:    decimal.NewFromInt(5),
			Interval: types.BillingIntervalMonthly,
		})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})
}

func (s *PlanServiceSuite) TestDeleteAddon() {
	plan := s.createPlan("Pro", decimal.NewFromInt(100), types.BillingIntervalMonthly)
	addonResp, err := s.service.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
		PlanID:   plan.Plan.ID,
		Name:     "Extra Storage",
		Price:    decimal.NewFromInt(25),
		Interval: types.BillingIntervalMonthly,
	})
	s.NoError(err)

	sub := s.seedSubscription(plan.Plan.ID, types.SubscriptionStatusActive, decimal.NewFromInt(100), types.BillingIntervalMonthly)
	attachment := &domainSub.SubscriptionAddon{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_ADDON),
		SubscriptionID: sub.ID,
		AddonID:        addonResp.Addon.ID,
		AddonName:      addonResp.Addon.Name,
		Price:          addonResp.Addon.Price,
		Quantity:       1,
		StartDate:      time.Now().UTC(),
		IsActive:       true,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubAddonRepo.Create(s.GetContext(), attachment))

	s.Run("blocked by active attachment", func() {
		err := s.service.DeleteAddon(s.GetContext(), addonResp.Addon.ID)
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("deletable once detached", func() {
		now := time.Now().UTC()
		attachment.IsActive = false
		attachment.EndDate = &now
		s.NoError(s.GetStores().SubAddonRepo.Update(s.GetContext(), attachment))

		s.NoError(s.service.DeleteAddon(s.GetContext(), addonResp.Addon.ID))
	})
}

func (s *PlanServiceSuite) TestGetPlanStatistics() {
	plan := s.createPlan("Pro", decimal.NewFromInt(1000), types.BillingIntervalMonthly)

	// Yearly addon in the catalog: 1200/year normalizes to 100/month
	addonResp, err := s.service.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
		PlanID:   plan.Plan.ID,
		Name:     "Premium Support",
		Price:    decimal.NewFromInt(1200),
		Interval: types.BillingIntervalYearly,
	})
	s.NoError(err)

	active1 := s.seedSubscription(plan.Plan.ID, types.SubscriptionStatusActive, decimal.NewFromInt(1000), types.BillingIntervalMonthly)
	s.seedSubscription(plan.Plan.ID, types.SubscriptionStatusActive, decimal.NewFromInt(1000), types.BillingIntervalMonthly)
	s.seedSubscription(plan.Plan.ID, types.SubscriptionStatusTrialing, decimal.NewFromInt(1000), types.BillingIntervalMonthly)
	s.seedSubscription(plan.Plan.ID, types.SubscriptionStatusCancelled, decimal.NewFromInt(1000), types.BillingIntervalMonthly)

	s.NoError(s.GetStores().SubAddonRepo.Create(s.GetContext(), &domainSub.SubscriptionAddon{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_ADDON),
		SubscriptionID: active1.ID,
		AddonID:        addonResp.Addon.ID,
		AddonName:      addonResp.Addon.Name,
		Price:          addonResp.Addon.Price,
		Quantity:       1,
		StartDate:      time.Now().UTC(),
		IsActive:       true,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}))

	stats, err := s.service.GetPlanStatistics(s.GetContext(), plan.Plan.ID)
	s.NoError(err)
	s.Equal(4, stats.TotalSubscriptions)
	s.Equal(2, stats.SubscriptionsByStatus[types.SubscriptionStatusActive])
	s.Equal(1, stats.SubscriptionsByStatus[types.SubscriptionStatusTrialing])
	s.Equal(1, stats.SubscriptionsByStatus[types.SubscriptionStatusCancelled])
	// 3 billable subscriptions at 1000 plus the yearly addon's 100
	s.True(stats.MRR.Equal(decimal.NewFromInt(3100)), "got %s", stats.MRR)
	s.True(stats.ConversionRate.Equal(decimal.NewFromInt(50)), "got %s", stats.ConversionRate)
}

func (s *PlanServiceSuite) TestComparePlans() {
	monthly := s.createPlan("Monthly", decimal.NewFromInt(100), types.BillingIntervalMonthly)
	yearly := s.createPlan("Yearly", decimal.NewFromInt(1800), types.BillingIntervalYearly)

	s.Run("upgrade on monthly-normalized terms", func() {
		resp, err := s.service.ComparePlans(s.GetContext(), monthly.Plan.ID, yearly.Plan.ID)
		s.NoError(err)
		// Yearly 1800 normalizes to 150/month against 100/month
		s.True(resp.PriceDelta.Equal(decimal.NewFromInt(50)), "got %s", resp.PriceDelta)
		s.True(resp.PercentChange.Equal(decimal.NewFromInt(50)), "got %s", resp.PercentChange)
		s.True(resp.IsUpgrade)
	})

	s.Run("downgrade the other way", func() {
		resp, err := s.service.ComparePlans(s.GetContext(), yearly.Plan.ID, monthly.Plan.ID)
		s.NoError(err)
		s.True(resp.PriceDelta.Equal(decimal.NewFromInt(-50)))
		s.False(resp.IsUpgrade)
	})

	s.Run("same plan", func() {
		_, err := s.service.ComparePlans(s.GetContext(), monthly.Plan.ID, monthly.Plan.ID)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *PlanServiceSuite) seedSubscription(planID string, status types.SubscriptionStatus, price decimal.Decimal, interval types.BillingInterval) *domainSub.Subscription {
	now := time.Now().UTC()
	periodEnd, err := types.NextBillingDate(now, 1, interval)
	s.NoError(err)

	sub := &domainSub.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         "cust_1",
		PlanID:             planID,
		PlanName:           "Pro",
		SubscriptionStatus: status,
		Price:              price,
		Currency:           "usd",
		Interval:           interval,
		IntervalCount:      1,
		StartDate:          now,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		NextBillingDate:    periodEnd,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))
	return sub
}
