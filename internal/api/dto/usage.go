package dto

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	domainUsage "github.com/vidinfra/subflow/internal/domain/usage"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
)

type RecordUsageRequest struct {
	SubscriptionID string          `json:"subscription_id" validate:"required"`
	Metric         string          `json:"metric" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
	// RecordDate defaults to now when omitted
	RecordDate *time.Time        `json:"record_date,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (r *RecordUsageRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	// Zero-quantity records carry no information and are rejected; any
	// non-zero sign is valid, negatives model releases.
	if r.Quantity.IsZero() {
		return ierr.NewError("quantity must be non zero").
			WithHint("Usage quantity must be a non zero signed amount").
			WithReportableDetails(map[string]any{
				"subscription_id": r.SubscriptionID,
				"metric":          r.Metric,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

func (r *RecordUsageRequest) ToRecord(ctx context.Context) *domainUsage.Record {
	recordDate := time.Now().UTC()
	if r.RecordDate != nil {
		recordDate = r.RecordDate.UTC()
	}

	return &domainUsage.Record{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_RECORD),
		SubscriptionID: r.SubscriptionID,
		Metric:         r.Metric,
		Quantity:       r.Quantity,
		RecordDate:     recordDate,
		Metadata:       r.Metadata,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

type UsageRecordResponse struct {
	*domainUsage.Record
}

// CurrentUsageResponse reports per-metric aggregates over the
// subscription's current billing period
type CurrentUsageResponse struct {
	SubscriptionID string                     `json:"subscription_id"`
	PeriodStart    time.Time                  `json:"period_start"`
	PeriodEnd      time.Time                  `json:"period_end"`
	Usage          map[string]decimal.Decimal `json:"usage"`
}

// UsageLimitStatus is the limit check outcome for a single configured
// metric. Metrics without a configured limit are never reported.
type UsageLimitStatus struct {
	Metric     string          `json:"metric"`
	Limit      decimal.Decimal `json:"limit"`
	Current    decimal.Decimal `json:"current"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage decimal.Decimal `json:"percentage"`
	Exceeded   bool            `json:"exceeded"`
}

type CheckUsageLimitsResponse struct {
	SubscriptionID string              `json:"subscription_id"`
	Limits         []*UsageLimitStatus `json:"limits"`
	AnyExceeded    bool                `json:"any_exceeded"`
}

type GetUsageOverTimeRequest struct {
	SubscriptionID string           `json:"subscription_id" validate:"required"`
	Metric         string           `json:"metric" validate:"required"`
	WindowSize     types.WindowSize `json:"window_size" validate:"required"`
	StartTime      time.Time        `json:"start_time" validate:"required"`
	EndTime        time.Time        `json:"end_time" validate:"required"`
}

func (r *GetUsageOverTimeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if err := r.WindowSize.Validate(); err != nil {
		return err
	}

	if r.EndTime.Before(r.StartTime) {
		return ierr.NewError("invalid time range").
			WithHint("End time must not be before start time").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// UsageBucket is one aggregation window in a usage-over-time series
type UsageBucket struct {
	WindowStart string          `json:"window_start"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type UsageOverTimeResponse struct {
	SubscriptionID string           `json:"subscription_id"`
	Metric         string           `json:"metric"`
	WindowSize     types.WindowSize `json:"window_size"`
	Buckets        []*UsageBucket   `json:"buckets"`
}
