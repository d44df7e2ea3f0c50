package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/vidinfra/subflow/internal/api/dto"
	domainPlan "github.com/vidinfra/subflow/internal/domain/plan"
	"github.com/vidinfra/subflow/internal/domain/proration"
	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/locker"
	"github.com/vidinfra/subflow/internal/testutil"
	"github.com/vidinfra/subflow/internal/types"
)

type UsageServiceSuite struct {
	testutil.BaseServiceTestSuite
	service UsageService
	sub     *domainSub.Subscription
}

func TestUsageService(t *testing.T) {
	suite.Run(t, new(UsageServiceSuite))
}

func (s *UsageServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.service = NewUsageService(ServiceParams{
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

	now := time.Now().UTC()
	plan := &domainPlan.Plan{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:          "Pro",
		Price:         decimal.NewFromInt(100),
		Currency:      "usd",
		Interval:      types.BillingIntervalMonthly,
		IntervalCount: 1,
		Limits: domainPlan.Limits{
			MaxUsers: lo.ToPtr(decimal.NewFromInt(10)),
			Custom: map[string]decimal.Decimal{
				"api_calls": decimal.NewFromInt(1000),
			},
		},
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(stores.PlanRepo.Create(s.GetContext(), plan))

	s.sub = &domainSub.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         "cust_1",
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		SubscriptionStatus: types.SubscriptionStatusActive,
		Price:              plan.Price,
		Currency:           plan.Currency,
		Interval:           plan.Interval,
		IntervalCount:      1,
		StartDate:          now.AddDate(0, 0, -15),
		CurrentPeriodStart: now.AddDate(0, 0, -15),
		CurrentPeriodEnd:   now.AddDate(0, 0, 15),
		NextBillingDate:    now.AddDate(0, 0, 15),
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(stores.SubRepo.Create(s.GetContext(), s.sub))
}

func (s *UsageServiceSuite) record(metric string, quantity int64, recordDate time.Time) {
	_, err := s.service.RecordUsage(s.GetContext(), dto.RecordUsageRequest{
		SubscriptionID: s.sub.ID,
		Metric:         metric,
		Quantity:       decimal.NewFromInt(quantity),
		RecordDate:     &recordDate,
	})
	s.NoError(err)
}

func (s *UsageServiceSuite) TestRecordUsage() {
	s.Run("valid record", func() {
		recordDate := time.Now().UTC().Add(-time.Hour)
		resp, err := s.service.RecordUsage(s.GetContext(), dto.RecordUsageRequest{
			SubscriptionID: s.sub.ID,
			Metric:         types.MetricUsers,
			Quantity:       decimal.NewFromInt(3),
			RecordDate:     &recordDate,
			Metadata:       map[string]string{"source": "signup"},
		})
		s.NoError(err)
		s.NotEmpty(resp.Record.ID)
		s.Equal(types.MetricUsers, resp.Record.Metric)
		s.Equal(recordDate, resp.Record.RecordDate)
		s.Equal("signup", resp.Record.Metadata["source"])
	})

	s.Run("zero quantity rejected", func() {
		_, err := s.service.RecordUsage(s.GetContext(), dto.RecordUsageRequest{
			SubscriptionID: s.sub.ID,
			Metric:         types.MetricUsers,
			Quantity:       decimal.Zero,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("missing metric rejected", func() {
		_, err := s.service.RecordUsage(s.GetContext(), dto.RecordUsageRequest{
			SubscriptionID: s.sub.ID,
			Quantity:       decimal.NewFromInt(1),
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("unknown subscription", func() {
		_, err := s.service.RecordUsage(s.GetContext(), dto.RecordUsageRequest{
			SubscriptionID: "subs_missing",
			Metric:         types.MetricUsers,
			Quantity:       decimal.NewFromInt(1),
		})
		s.Error(err)
		s.True(ierr.IsNotFound(err))
	})
}

func (s *UsageServiceSuite) TestIncrementDecrement() {
	_, err := s.service.IncrementUsage(s.GetContext(), s.sub.ID, types.MetricUsers, decimal.NewFromInt(5))
	s.NoError(err)

	resp, err := s.service.DecrementUsage(s.GetContext(), s.sub.ID, types.MetricUsers, decimal.NewFromInt(2))
	s.NoError(err)
	s.True(resp.Record.Quantity.Equal(decimal.NewFromInt(-2)), "decrement stores a negative quantity, got %s", resp.Record.Quantity)

	current, err := s.service.GetCurrentUsage(s.GetContext(), s.sub.ID)
	s.NoError(err)
	s.True(current.Usage[types.MetricUsers].Equal(decimal.NewFromInt(3)))

	s.Run("increment rejects non positive quantity", func() {
		_, err := s.service.IncrementUsage(s.GetContext(), s.sub.ID, types.MetricUsers, decimal.NewFromInt(-1))
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("decrement takes the positive amount", func() {
		_, err := s.service.DecrementUsage(s.GetContext(), s.sub.ID, types.MetricUsers, decimal.Zero)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *UsageServiceSuite) TestGetCurrentUsage() {
	now := time.Now().UTC()

	s.record(types.MetricUsers, 4, now.AddDate(0, 0, -3))
	s.record(types.MetricUsers, 2, now.AddDate(0, 0, -1))
	s.record(types.MetricStorage, 50, now.AddDate(0, 0, -2))
	// Before the current period opened: not counted
	s.record(types.MetricUsers, 100, now.AddDate(0, 0, -20))

	current, err := s.service.GetCurrentUsage(s.GetContext(), s.sub.ID)
	s.NoError(err)
	s.Equal(s.sub.CurrentPeriodStart, current.PeriodStart)
	s.Equal(s.sub.CurrentPeriodEnd, current.PeriodEnd)
	s.True(current.Usage[types.MetricUsers].Equal(decimal.NewFromInt(6)), "got %s", current.Usage[types.MetricUsers])
	s.True(current.Usage[types.MetricStorage].Equal(decimal.NewFromInt(50)))
}

func (s *UsageServiceSuite) TestCheckUsageLimits() {
	now := time.Now().UTC()

	s.record(types.MetricUsers, 12, now.AddDate(0, 0, -1))
	s.record("api_calls", 500, now.AddDate(0, 0, -1))
	// No limit configured for storage: unlimited, omitted from the report
	s.record(types.MetricStorage, 9999, now.AddDate(0, 0, -1))

	resp, err := s.service.CheckUsageLimits(s.GetContext(), s.sub.ID)
	s.NoError(err)
	s.True(resp.AnyExceeded)
	s.Len(resp.Limits, 2)

	byMetric := make(map[string]*dto.UsageLimitStatus)
	for _, status := range resp.Limits {
		byMetric[status.Metric] = status
	}

	users := byMetric[types.MetricUsers]
	s.NotNil(users)
	s.True(users.Exceeded)
	s.True(users.Current.Equal(decimal.NewFromInt(12)))
	s.True(users.Remaining.Equal(decimal.NewFromInt(-2)))
	s.True(users.Percentage.Equal(decimal.NewFromInt(120)), "got %s", users.Percentage)

	apiCalls := byMetric["api_calls"]
	s.NotNil(apiCalls)
	s.False(apiCalls.Exceeded)
	s.True(apiCalls.Percentage.Equal(decimal.NewFromInt(50)))

	s.Nil(byMetric[types.MetricStorage])
}

func (s *UsageServiceSuite) TestNegativeAggregateNotFloored() {
	now := time.Now().UTC()

	s.record(types.MetricUsers, 2, now.AddDate(0, 0, -2))
	_, err := s.service.DecrementUsage(s.GetContext(), s.sub.ID, types.MetricUsers, decimal.NewFromInt(5))
	s.NoError(err)

	resp, err := s.service.CheckUsageLimits(s.GetContext(), s.sub.ID)
	s.NoError(err)

	for _, status := range resp.Limits {
		if status.Metric != types.MetricUsers {
			continue
		}
		// Over-releasing stays visible as a negative aggregate
		s.True(status.Current.Equal(decimal.NewFromInt(-3)), "got %s", status.Current)
		s.False(status.Exceeded)
	}
}

func (s *UsageServiceSuite) TestGetUsageOverTime() {
	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	s.record("api_calls", 10, base)
	s.record("api_calls", 5, base.Add(2*time.Hour))
	s.record("api_calls", 7, base.AddDate(0, 0, 2))
	// Different metric never leaks into the series
	s.record(types.MetricUsers, 99, base)

	resp, err := s.service.GetUsageOverTime(s.GetContext(), dto.GetUsageOverTimeRequest{
		SubscriptionID: s.sub.ID,
		Metric:         "api_calls",
		WindowSize:     types.WindowSizeDay,
		StartTime:      base.AddDate(0, 0, -1),
		EndTime:        base.AddDate(0, 0, 3),
	})
	s.NoError(err)
	s.Len(resp.Buckets, 2)
	s.Equal("2026-08-10", resp.Buckets[0].WindowStart)
	s.True(resp.Buckets[0].Quantity.Equal(decimal.NewFromInt(15)))
	s.Equal("2026-08-12", resp.Buckets[1].WindowStart)
	s.True(resp.Buckets[1].Quantity.Equal(decimal.NewFromInt(7)))

	s.Run("month buckets", func() {
		monthly, err := s.service.GetUsageOverTime(s.GetContext(), dto.GetUsageOverTimeRequest{
			SubscriptionID: s.sub.ID,
			Metric:         "api_calls",
			WindowSize:     types.WindowSizeMonth,
			StartTime:      base.AddDate(0, 0, -1),
			EndTime:        base.AddDate(0, 0, 3),
		})
		s.NoError(err)
		s.Len(monthly.Buckets, 1)
		s.Equal("2026-08", monthly.Buckets[0].WindowStart)
		s.True(monthly.Buckets[0].Quantity.Equal(decimal.NewFromInt(22)))
	})

	s.Run("invalid window size", func() {
		_, err := s.service.GetUsageOverTime(s.GetContext(), dto.GetUsageOverTimeRequest{
			SubscriptionID: s.sub.ID,
			Metric:         "api_calls",
			WindowSize:     types.WindowSize("hour"),
			StartTime:      base,
			EndTime:        base.AddDate(0, 0, 1),
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("end before start", func() {
		_, err := s.service.GetUsageOverTime(s.GetContext(), dto.GetUsageOverTimeRequest{
			SubscriptionID: s.sub.ID,
			Metric:         "api_calls",
			WindowSize:     types.WindowSizeDay,
			StartTime:      base,
			EndTime:        base.AddDate(0, 0, -1),
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *UsageServiceSuite) TestPurgeExpiredRecords() {
	now := time.Now().UTC()

	// Retention is 90 days against the record date
	s.record(types.MetricUsers, 1, now.AddDate(0, 0, -120))
	s.record(types.MetricUsers, 1, now.AddDate(0, 0, -100))
	s.record(types.MetricUsers, 1, now.AddDate(0, 0, -10))

	deleted, err := s.service.PurgeExpiredRecords(s.GetContext(), now)
	s.NoError(err)
	s.Equal(2, deleted)

	records, err := s.GetStores().UsageRepo.List(s.GetContext(), &types.UsageRecordFilter{
		SubscriptionID: s.sub.ID,
	})
	s.NoError(err)
	s.Len(records, 1)

	s.Run("nothing left to purge", func() {
		deleted, err := s.service.PurgeExpiredRecords(s.GetContext(), now)
		s.NoError(err)
		s.Equal(0, deleted)
	})
}
