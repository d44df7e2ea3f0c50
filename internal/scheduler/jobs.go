package scheduler

import (
	"context"
	"time"

	"github.com/vidinfra/subflow/internal/config"
	"github.com/vidinfra/subflow/internal/service"
)

// NewDefaultJobs binds the engine's scheduled triggers to their configured
// cadences. Cadences are independent; mutual exclusion between overlapping
// batches is handled inside the billing engine's per-subscription lock, not
// here.
func NewDefaultJobs(
	cfg *config.Configuration,
	subscriptionService service.SubscriptionService,
	billingService service.BillingService,
	usageService service.UsageService,
) []Job {
	return []Job{
		{
			Name: "due_invoices",
			Spec: cfg.Scheduler.DueInvoices,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := billingService.ProcessDueInvoices(ctx, now)
				return err
			},
		},
		{
			Name: "trial_expiration",
			Spec: cfg.Scheduler.TrialExpiration,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := billingService.ProcessTrialExpirations(ctx, now)
				return err
			},
		},
		{
			Name: "cancelled_expiry",
			Spec: cfg.Scheduler.CancelledExpiry,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := subscriptionService.ProcessCancelledExpirations(ctx, now)
				return err
			},
		},
		{
			Name: "past_due_check",
			Spec: cfg.Scheduler.PastDueCheck,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := billingService.MarkOverdueInvoices(ctx, now)
				return err
			},
		},
		{
			Name: "payment_reminder",
			Spec: cfg.Scheduler.PaymentReminder,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := billingService.ProcessPaymentReminders(ctx, now)
				return err
			},
		},
		{
			Name: "usage_retention",
			Spec: cfg.Scheduler.UsageRetention,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := usageService.PurgeExpiredRecords(ctx, now)
				return err
			},
		},
		{
			Name: "scheduled_resume",
			Spec: cfg.Scheduler.ScheduledResume,
			Handler: func(ctx context.Context, now time.Time) error {
				_, err := subscriptionService.ProcessScheduledResumes(ctx, now)
				return err
			},
		},
	}
}
