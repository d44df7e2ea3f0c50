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

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     SubscriptionService
	planService PlanService
	testData    struct {
		plan      *dto.PlanResponse
		trialPlan *dto.PlanResponse
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	params := ServiceParams{
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
	}
	s.service = NewSubscriptionService(params)
	s.planService = NewPlanService(params)

	s.setupTestData()
}

func (s *SubscriptionServiceSuite) setupTestData() {
	var err error
	s.testData.plan, err = s.planService.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:     "Pro",
		Currency: "usd",
		Price:    decimal.NewFromInt(100),
		Interval: types.BillingIntervalMonthly,
	})
	s.NoError(err)

	s.testData.trialPlan, err = s.planService.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:      "Pro Trial",
		Currency:  "usd",
		Price:     decimal.NewFromInt(100),
		Interval:  types.BillingIntervalMonthly,
		TrialDays: 14,
	})
	s.NoError(err)
}

func (s *SubscriptionServiceSuite) createSubscription(planID string) *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		CustomerID: "cust_1",
		PlanID:     planID,
	})
	s.NoError(err)
	return resp
}

func (s *SubscriptionServiceSuite) periodsFor(subscriptionID string) []*domainSub.SubscriptionPeriod {
	periods, err := s.GetStores().PeriodRepo.ListBySubscription(s.GetContext(), subscriptionID)
	s.NoError(err)
	return periods
}

func (s *SubscriptionServiceSuite) TestCreateSubscription() {
	s.Run("active without trial", func() {
		start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
			CustomerID: "cust_1",
			PlanID:     s.testData.plan.Plan.ID,
			StartDate:  &start,
		})
		s.NoError(err)

		sub := resp.Subscription
		s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
		s.True(sub.Price.Equal(decimal.NewFromInt(100)))
		s.Equal(start, sub.CurrentPeriodStart)
		s.Equal(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), sub.CurrentPeriodEnd)
		s.Equal(sub.CurrentPeriodEnd, sub.NextBillingDate)
		s.Nil(sub.TrialEnd)

		periods := s.periodsFor(sub.ID)
		s.Len(periods, 1)
		s.Equal(types.PeriodStatusPending, periods[0].PeriodStatus)
		s.True(periods[0].Amount.Equal(decimal.NewFromInt(100)))

		s.True(s.GetPublisher().HasEvent(types.WebhookEventSubscriptionCreated))
	})

	s.Run("trialing with plan trial days", func() {
		start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
			CustomerID: "cust_2",
			PlanID:     s.testData.trialPlan.Plan.ID,
			StartDate:  &start,
		})
		s.NoError(err)

		sub := resp.Subscription
		s.Equal(types.SubscriptionStatusTrialing, sub.SubscriptionStatus)
		s.NotNil(sub.TrialEnd)
		s.Equal(start.AddDate(0, 0, 14), *sub.TrialEnd)
		s.Equal(*sub.TrialEnd, sub.CurrentPeriodEnd)
		s.Equal(*sub.TrialEnd, sub.NextBillingDate)

		// The trial period is free
		periods := s.periodsFor(sub.ID)
		s.Len(periods, 1)
		s.True(periods[0].Amount.IsZero())
	})

	s.Run("request trial days override plan", func() {
		resp, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
			CustomerID: "cust_3",
			PlanID:     s.testData.trialPlan.Plan.ID,
			TrialDays:  lo.ToPtr(0),
		})
		s.NoError(err)
		s.Equal(types.SubscriptionStatusActive, resp.Subscription.SubscriptionStatus)
		s.Nil(resp.Subscription.TrialEnd)
	})

	s.Run("inactive plan rejected", func() {
		_, err := s.planService.SetPlanActive(s.GetContext(), s.testData.plan.Plan.ID, false)
		s.NoError(err)
		defer func() {
			_, err := s.planService.SetPlanActive(s.GetContext(), s.testData.plan.Plan.ID, true)
			s.NoError(err)
		}()

		_, err = s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
			CustomerID: "cust_4",
			PlanID:     s.testData.plan.Plan.ID,
		})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})

	s.Run("missing customer", func() {
		_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
			PlanID: s.testData.plan.Plan.ID,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *SubscriptionServiceSuite) TestCancelSubscription() {
	s.Run("deferred cancel keeps access until period end", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)

		resp, err := s.service.CancelSubscription(s.GetContext(), sub.Subscription.ID, dto.CancelSubscriptionRequest{
			Reason: "too expensive",
		})
		s.NoError(err)
		s.Equal(types.SubscriptionStatusCancelled, resp.Subscription.SubscriptionStatus)
		s.True(resp.Subscription.CancelAtPeriodEnd)
		s.NotNil(resp.Subscription.CancelledAt)
		s.Nil(resp.Subscription.EndedAt)
		s.True(s.GetPublisher().HasEvent(types.WebhookEventSubscriptionCancelled))
	})

	s.Run("immediate cancel expires right away", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)

		resp, err := s.service.CancelSubscription(s.GetContext(), sub.Subscription.ID, dto.CancelSubscriptionRequest{
			Immediate: true,
		})
		s.NoError(err)
		s.Equal(types.SubscriptionStatusExpired, resp.Subscription.SubscriptionStatus)
		s.False(resp.Subscription.CancelAtPeriodEnd)
		s.NotNil(resp.Subscription.EndedAt)
	})

	s.Run("cancelling twice conflicts", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.CancelSubscription(s.GetContext(), sub.Subscription.ID, dto.CancelSubscriptionRequest{})
		s.NoError(err)

		_, err = s.service.CancelSubscription(s.GetContext(), sub.Subscription.ID, dto.CancelSubscriptionRequest{})
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})
}

func (s *SubscriptionServiceSuite) TestReactivateSubscription() {
	s.Run("within the paid period", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.CancelSubscription(s.GetContext(), sub.Subscription.ID, dto.CancelSubscriptionRequest{})
		s.NoError(err)

		resp, err := s.service.ReactivateSubscription(s.GetContext(), sub.Subscription.ID)
		s.NoError(err)
		s.Equal(types.SubscriptionStatusActive, resp.Subscription.SubscriptionStatus)
		s.False(resp.Subscription.CancelAtPeriodEnd)
		s.Nil(resp.Subscription.CancelledAt)
		s.True(s.GetPublisher().HasEvent(types.WebhookEventSubscriptionReactivated))
	})

	s.Run("after the paid period ran out", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.CancelSubscription(s.GetContext(), sub.Subscription.ID, dto.CancelSubscriptionRequest{})
		s.NoError(err)

		stored, err := s.GetStores().SubRepo.Get(s.GetContext(), sub.Subscription.ID)
		s.NoError(err)
		stored.CurrentPeriodEnd = time.Now().UTC().AddDate(0, 0, -1)
		s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), stored))

		_, err = s.service.ReactivateSubscription(s.GetContext(), sub.Subscription.ID)
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("active subscription can not be reactivated", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.ReactivateSubscription(s.GetContext(), sub.Subscription.ID)
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})
}

func (s *SubscriptionServiceSuite) TestPauseAndResume() {
	s.Run("pause then resume", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)

		resumeAt := time.Now().UTC().AddDate(0, 1, 0)
		paused, err := s.service.PauseSubscription(s.GetContext(), sub.Subscription.ID, dto.PauseSubscriptionRequest{
			Reason:   "seasonal",
			ResumeAt: &resumeAt,
		})
		s.NoError(err)
		s.Equal(types.SubscriptionStatusPaused, paused.Subscription.SubscriptionStatus)
		s.NotNil(paused.Subscription.PausedAt)
		s.True(s.GetPublisher().HasEvent(types.WebhookEventSubscriptionPaused))

		resumed, err := s.service.ResumeSubscription(s.GetContext(), sub.Subscription.ID)
		s.NoError(err)
		s.Equal(types.SubscriptionStatusActive, resumed.Subscription.SubscriptionStatus)
		s.Nil(resumed.Subscription.PausedAt)
		s.Nil(resumed.Subscription.ResumeAt)
		s.True(s.GetPublisher().HasEvent(types.WebhookEventSubscriptionResumed))
	})

	s.Run("pause requires active", func() {
		sub := s.createSubscription(s.testData.trialPlan.Plan.ID)
		_, err := s.service.PauseSubscription(s.GetContext(), sub.Subscription.ID, dto.PauseSubscriptionRequest{})
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("resume requires paused", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.ResumeSubscription(s.GetContext(), sub.Subscription.ID)
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("resume_at must be in the future", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		past := time.Now().UTC().AddDate(0, 0, -1)
		_, err := s.service.PauseSubscription(s.GetContext(), sub.Subscription.ID, dto.PauseSubscriptionRequest{
			ResumeAt: &past,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *SubscriptionServiceSuite) TestChangePlan() {
	target, err := s.planService.CreatePlan(s.GetContext(), dto.CreatePlanRequest{
		Name:     "Enterprise",
		Currency: "usd",
		Price:    decimal.NewFromInt(500),
		Interval: types.BillingIntervalYearly,
	})
	s.NoError(err)

	s.Run("deferred change keeps the current period", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		before := sub.Subscription.CurrentPeriodEnd

		resp, err := s.service.ChangePlan(s.GetContext(), sub.Subscription.ID, dto.ChangePlanRequest{
			NewPlanID: target.Plan.ID,
		})
		s.NoError(err)
		s.Equal(target.Plan.ID, resp.Subscription.PlanID)
		s.True(resp.Subscription.Price.Equal(decimal.NewFromInt(500)))
		s.Equal(types.BillingIntervalYearly, resp.Subscription.Interval)
		s.Equal(before, resp.Subscription.CurrentPeriodEnd)
		s.True(s.GetPublisher().HasEvent(types.WebhookEventSubscriptionPlanChanged))

		// No extra period row for a deferred change
		s.Len(s.periodsFor(sub.Subscription.ID), 1)
	})

	s.Run("immediate change recomputes the period", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)

		resp, err := s.service.ChangePlan(s.GetContext(), sub.Subscription.ID, dto.ChangePlanRequest{
			NewPlanID: target.Plan.ID,
			Immediate: true,
		})
		s.NoError(err)
		s.Equal(target.Plan.ID, resp.Subscription.PlanID)
		s.True(resp.Subscription.CurrentPeriodEnd.After(time.Now().UTC().AddDate(0, 11, 0)))

		periods := s.periodsFor(sub.Subscription.ID)
		s.Len(periods, 2)
	})

	s.Run("same plan conflicts", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.ChangePlan(s.GetContext(), sub.Subscription.ID, dto.ChangePlanRequest{
			NewPlanID: s.testData.plan.Plan.ID,
		})
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("inactive target plan rejected", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.planService.SetPlanActive(s.GetContext(), target.Plan.ID, false)
		s.NoError(err)
		defer func() {
			_, err := s.planService.SetPlanActive(s.GetContext(), target.Plan.ID, true)
			s.NoError(err)
		}()

		_, err = s.service.ChangePlan(s.GetContext(), sub.Subscription.ID, dto.ChangePlanRequest{
			NewPlanID: target.Plan.ID,
		})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})

	s.Run("paused subscription can not change plans", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.PauseSubscription(s.GetContext(), sub.Subscription.ID, dto.PauseSubscriptionRequest{})
		s.NoError(err)

		_, err = s.service.ChangePlan(s.GetContext(), sub.Subscription.ID, dto.ChangePlanRequest{
			NewPlanID: target.Plan.ID,
		})
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})
}

func (s *SubscriptionServiceSuite) TestAddAndRemoveAddon() {
	addonResp, err := s.planService.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
		PlanID:   s.testData.plan.Plan.ID,
		Name:     "Extra Seats",
		Price:    decimal.NewFromInt(30),
		Interval: types.BillingIntervalMonthly,
	})
	s.NoError(err)

	pinned, err := s.planService.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
		PlanID:        s.testData.plan.Plan.ID,
		Name:          "Compliance Pack",
		Price:         decimal.NewFromInt(50),
		Interval:      types.BillingIntervalMonthly,
		FixedQuantity: lo.ToPtr(2),
	})
	s.NoError(err)

	otherPlanAddon, err := s.planService.CreateAddon(s.GetContext(), dto.CreateAddonRequest{
		PlanID:   s.testData.trialPlan.Plan.ID,
		Name:     "Wrong Plan",
		Price:    decimal.NewFromInt(10),
		Interval: types.BillingIntervalMonthly,
	})
	s.NoError(err)

	s.Run("attach with requested quantity", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		resp, err := s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{
			AddonID:  addonResp.Addon.ID,
			Quantity: 4,
		})
		s.NoError(err)
		s.Equal(4, resp.SubscriptionAddon.Quantity)
		s.True(resp.SubscriptionAddon.Price.Equal(decimal.NewFromInt(30)))
		s.True(resp.SubscriptionAddon.IsActive)
	})

	s.Run("fixed quantity pins the attachment", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		resp, err := s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{
			AddonID:  pinned.Addon.ID,
			Quantity: 9,
		})
		s.NoError(err)
		s.Equal(2, resp.SubscriptionAddon.Quantity)
	})

	s.Run("duplicate active attachment conflicts", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{AddonID: addonResp.Addon.ID})
		s.NoError(err)

		_, err = s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{AddonID: addonResp.Addon.ID})
		s.Error(err)
		s.True(ierr.IsConflict(err))
	})

	s.Run("addon of a different plan rejected", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		_, err := s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{AddonID: otherPlanAddon.Addon.ID})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("remove soft-ends and allows re-attachment", func() {
		sub := s.createSubscription(s.testData.plan.Plan.ID)
		attached, err := s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{AddonID: addonResp.Addon.ID})
		s.NoError(err)

		s.NoError(s.service.RemoveAddon(s.GetContext(), attached.SubscriptionAddon.ID))

		stored, err := s.GetStores().SubAddonRepo.Get(s.GetContext(), attached.SubscriptionAddon.ID)
		s.NoError(err)
		s.False(stored.IsActive)
		s.NotNil(stored.EndDate)

		// Removing again conflicts
		err = s.service.RemoveAddon(s.GetContext(), attached.SubscriptionAddon.ID)
		s.Error(err)
		s.True(ierr.IsConflict(err))

		// A fresh attachment of the same addon is allowed
		_, err = s.service.AddAddon(s.GetContext(), sub.Subscription.ID, dto.AddAddonRequest{AddonID: addonResp.Addon.ID})
		s.NoError(err)
	})
}

func (s *SubscriptionServiceSuite) TestProcessCancelledExpirations() {
	// Cancelled with the period already over: should expire
	due := s.createSubscription(s.testData.plan.Plan.ID)
	_, err := s.service.CancelSubscription(s.GetContext(), due.Subscription.ID, dto.CancelSubscriptionRequest{})
	s.NoError(err)
	stored, err := s.GetStores().SubRepo.Get(s.GetContext(), due.Subscription.ID)
	s.NoError(err)
	stored.CurrentPeriodEnd = time.Now().UTC().AddDate(0, 0, -1)
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), stored))

	// Cancelled but still inside the paid period: must stay cancelled
	notDue := s.createSubscription(s.testData.plan.Plan.ID)
	_, err = s.service.CancelSubscription(s.GetContext(), notDue.Subscription.ID, dto.CancelSubscriptionRequest{})
	s.NoError(err)

	resp, err := s.service.ProcessCancelledExpirations(s.GetContext(), time.Now().UTC())
	s.NoError(err)
	s.Equal(1, resp.Total)
	s.Equal(1, resp.Succeeded)
	s.Equal(0, resp.Failed)

	expired, err := s.GetStores().SubRepo.Get(s.GetContext(), due.Subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusExpired, expired.SubscriptionStatus)
	s.NotNil(expired.EndedAt)

	untouched, err := s.GetStores().SubRepo.Get(s.GetContext(), notDue.Subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, untouched.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestProcessScheduledResumes() {
	due := s.createSubscription(s.testData.plan.Plan.ID)
	resumeAt := time.Now().UTC().Add(time.Minute)
	_, err := s.service.PauseSubscription(s.GetContext(), due.Subscription.ID, dto.PauseSubscriptionRequest{ResumeAt: &resumeAt})
	s.NoError(err)

	// Paused with no scheduled resume: stays paused forever
	indefinite := s.createSubscription(s.testData.plan.Plan.ID)
	_, err = s.service.PauseSubscription(s.GetContext(), indefinite.Subscription.ID, dto.PauseSubscriptionRequest{})
	s.NoError(err)

	resp, err := s.service.ProcessScheduledResumes(s.GetContext(), time.Now().UTC().Add(time.Hour))
	s.NoError(err)
	s.Equal(1, resp.Total)
	s.Equal(1, resp.Succeeded)

	resumed, err := s.GetStores().SubRepo.Get(s.GetContext(), due.Subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)

	stillPaused, err := s.GetStores().SubRepo.Get(s.GetContext(), indefinite.Subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, stillPaused.SubscriptionStatus)
}
