package types

import (
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BillingInterval is the calendar unit a recurring charge renews on
type BillingInterval string

const (
	BillingIntervalDaily     BillingInterval = "daily"
	BillingIntervalWeekly    BillingInterval = "weekly"
	BillingIntervalMonthly   BillingInterval = "monthly"
	BillingIntervalQuarterly BillingInterval = "quarterly"
	BillingIntervalYearly    BillingInterval = "yearly"
)

func (i BillingInterval) String() string {
	return string(i)
}

func (i BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BillingIntervalDaily,
		BillingIntervalWeekly,
		BillingIntervalMonthly,
		BillingIntervalQuarterly,
		BillingIntervalYearly,
	}
	if !lo.Contains(allowed, i) {
		return ierr.NewError("invalid billing interval").
			WithHint("Billing interval must be daily, weekly, monthly, quarterly or yearly").
			WithReportableDetails(map[string]any{
				"interval":         i,
				"allowed_interval": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

var (
	daysPerYear   = decimal.NewFromInt(365)
	weeksPerYear  = decimal.NewFromInt(52)
	monthsPerYear = decimal.NewFromInt(12)
	three         = decimal.NewFromInt(3)
	twelve        = decimal.NewFromInt(12)
)

// MonthlyAmount normalizes a recurring amount billed every
// (intervalCount × interval) to its monthly equivalent. This is the
// normalization behind every MRR figure the engine reports: a yearly 1200
// contributes 100, a quarterly 300 contributes 100, a second monthly cycle
// (intervalCount=2) halves the contribution.
func (i BillingInterval) MonthlyAmount(amount decimal.Decimal, intervalCount int) decimal.Decimal {
	if intervalCount <= 0 {
		intervalCount = 1
	}

	var monthly decimal.Decimal
	switch i {
	case BillingIntervalDaily:
		monthly = amount.Mul(daysPerYear).Div(monthsPerYear)
	case BillingIntervalWeekly:
		monthly = amount.Mul(weeksPerYear).Div(monthsPerYear)
	case BillingIntervalMonthly:
		monthly = amount
	case BillingIntervalQuarterly:
		monthly = amount.Div(three)
	case BillingIntervalYearly:
		monthly = amount.Div(twelve)
	default:
		monthly = amount
	}

	return monthly.Div(decimal.NewFromInt(int64(intervalCount)))
}
