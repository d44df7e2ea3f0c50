package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanMRRItem is one plan's slice of the monthly recurring revenue
type PlanMRRItem struct {
	PlanID            string          `json:"plan_id"`
	PlanName          string          `json:"plan_name"`
	SubscriptionCount int             `json:"subscription_count"`
	MRR               decimal.Decimal `json:"mrr"`
}

// MRRBreakdownResponse reports monthly-normalized recurring revenue across
// all billable subscriptions of the tenant
type MRRBreakdownResponse struct {
	TotalMRR decimal.Decimal `json:"total_mrr"`
	// AddonMRR is the addon-attributable slice, already included in TotalMRR
	AddonMRR decimal.Decimal `json:"addon_mrr"`
	ByPlan   []*PlanMRRItem  `json:"by_plan"`
}

// ChurnRateResponse reports churn over an observation window
type ChurnRateResponse struct {
	WindowStart  time.Time       `json:"window_start"`
	WindowEnd    time.Time       `json:"window_end"`
	BaseCount    int             `json:"base_count"`
	ChurnedCount int             `json:"churned_count"`
	ChurnRate    decimal.Decimal `json:"churn_rate"`
}
