package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/api/dto"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// UsageService is the metering side of the engine: it records signed usage
// events and answers aggregate questions about them. It never blocks usage;
// limit checks report, enforcement is the caller's policy.
type UsageService interface {
	RecordUsage(ctx context.Context, req dto.RecordUsageRequest) (*dto.UsageRecordResponse, error)
	IncrementUsage(ctx context.Context, subscriptionID, metric string, quantity decimal.Decimal) (*dto.UsageRecordResponse, error)
	DecrementUsage(ctx context.Context, subscriptionID, metric string, quantity decimal.Decimal) (*dto.UsageRecordResponse, error)
	GetCurrentUsage(ctx context.Context, subscriptionID string) (*dto.CurrentUsageResponse, error)
	CheckUsageLimits(ctx context.Context, subscriptionID string) (*dto.CheckUsageLimitsResponse, error)
	GetUsageOverTime(ctx context.Context, req dto.GetUsageOverTimeRequest) (*dto.UsageOverTimeResponse, error)

	// PurgeExpiredRecords deletes usage records older than the configured
	// retention window. Scheduled trigger body; crosses tenants.
	PurgeExpiredRecords(ctx context.Context, now time.Time) (int, error)
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{ServiceParams: params}
}

func (s *usageService) RecordUsage(ctx context.Context, req dto.RecordUsageRequest) (*dto.UsageRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.SubRepo.Get(ctx, req.SubscriptionID); err != nil {
		return nil, err
	}

	record := req.ToRecord(ctx)
	if err := s.UsageRepo.Insert(ctx, record); err != nil {
		return nil, err
	}

	s.Logger.Debugw("recorded usage",
		"subscription_id", record.SubscriptionID,
		"metric", record.Metric,
		"quantity", record.Quantity,
	)

	return &dto.UsageRecordResponse{Record: record}, nil
}

// IncrementUsage records a positive usage event
func (s *usageService) IncrementUsage(ctx context.Context, subscriptionID, metric string, quantity decimal.Decimal) (*dto.UsageRecordResponse, error) {
	if !quantity.IsPositive() {
		return nil, ierr.NewError("quantity must be positive").
			WithHint("Increment takes a positive quantity; use decrement to release usage").
			WithReportableDetails(map[string]any{"quantity": quantity}).
			Mark(ierr.ErrValidation)
	}
	return s.RecordUsage(ctx, dto.RecordUsageRequest{
		SubscriptionID: subscriptionID,
		Metric:         metric,
		Quantity:       quantity,
	})
}

// DecrementUsage records a release as a negative usage event
func (s *usageService) DecrementUsage(ctx context.Context, subscriptionID, metric string, quantity decimal.Decimal) (*dto.UsageRecordResponse, error) {
	if !quantity.IsPositive() {
		return nil, ierr.NewError("quantity must be positive").
			WithHint("Decrement takes the positive amount to release").
			WithReportableDetails(map[string]any{"quantity": quantity}).
			Mark(ierr.ErrValidation)
	}
	return s.RecordUsage(ctx, dto.RecordUsageRequest{
		SubscriptionID: subscriptionID,
		Metric:         metric,
		Quantity:       quantity.Neg(),
	})
}

// GetCurrentUsage aggregates each metric's signed usage over the
// subscription's current billing period
func (s *usageService) GetCurrentUsage(ctx context.Context, subscriptionID string) (*dto.CurrentUsageResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	records, err := s.UsageRepo.List(ctx, &types.UsageRecordFilter{
		SubscriptionID: subscriptionID,
		StartTime:      &sub.CurrentPeriodStart,
		EndTime:        &sub.CurrentPeriodEnd,
	})
	if err != nil {
		return nil, err
	}

	usage := make(map[string]decimal.Decimal)
	for _, r := range records {
		usage[r.Metric] = usage[r.Metric].Add(r.Quantity)
	}

	return &dto.CurrentUsageResponse{
		SubscriptionID: subscriptionID,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		Usage:          usage,
	}, nil
}

// CheckUsageLimits reports each configured limit of the subscription's plan
// against the current period's usage. Metrics without a configured limit are
// unlimited and omitted entirely. Aggregates can legitimately go negative
// when releases outnumber recorded additions; the report shows the raw
// aggregate rather than flooring it, so over-releasing is visible to the
// tenant instead of silently hidden.
func (s *usageService) CheckUsageLimits(ctx context.Context, subscriptionID string) (*dto.CheckUsageLimitsResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	plan, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	current, err := s.GetCurrentUsage(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	response := &dto.CheckUsageLimitsResponse{SubscriptionID: subscriptionID}
	for metric, limit := range plan.Limits.Configured() {
		used := current.Usage[metric]

		percentage := decimal.Zero
		if !limit.IsZero() {
			percentage = used.Div(limit).Mul(hundred)
		} else if used.IsPositive() {
			percentage = hundred
		}

		status := &dto.UsageLimitStatus{
			Metric:     metric,
			Limit:      limit,
			Current:    used,
			Remaining:  limit.Sub(used),
			Percentage: percentage,
			Exceeded:   used.GreaterThan(limit),
		}
		if status.Exceeded {
			response.AnyExceeded = true
		}
		response.Limits = append(response.Limits, status)
	}

	return response, nil
}

// GetUsageOverTime buckets a metric's usage into day, week or month windows
// over the requested range
func (s *usageService) GetUsageOverTime(ctx context.Context, req dto.GetUsageOverTimeRequest) (*dto.UsageOverTimeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.SubRepo.Get(ctx, req.SubscriptionID); err != nil {
		return nil, err
	}

	records, err := s.UsageRepo.List(ctx, &types.UsageRecordFilter{
		SubscriptionID: req.SubscriptionID,
		Metric:         req.Metric,
		StartTime:      &req.StartTime,
		EndTime:        &req.EndTime,
	})
	if err != nil {
		return nil, err
	}

	// Records come back ordered by record date, so equal bucket keys are
	// always contiguous
	var buckets []*dto.UsageBucket
	for _, r := range records {
		key := req.WindowSize.BucketKey(r.RecordDate)
		if len(buckets) == 0 || buckets[len(buckets)-1].WindowStart != key {
			buckets = append(buckets, &dto.UsageBucket{WindowStart: key})
		}
		last := buckets[len(buckets)-1]
		last.Quantity = last.Quantity.Add(r.Quantity)
	}

	return &dto.UsageOverTimeResponse{
		SubscriptionID: req.SubscriptionID,
		Metric:         req.Metric,
		WindowSize:     req.WindowSize,
		Buckets:        buckets,
	}, nil
}

// PurgeExpiredRecords drops usage records past the retention window. The
// window is measured against the record date, not creation time.
func (s *usageService) PurgeExpiredRecords(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -s.Config.Billing.UsageRetentionDays)

	deleted, err := s.UsageRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.Logger.Infow("purged expired usage records",
			"deleted", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted, nil
}
