package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/api/dto"
	domainInvoice "github.com/vidinfra/subflow/internal/domain/invoice"
	domainSub "github.com/vidinfra/subflow/internal/domain/subscription"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// BillingService is the billing engine: it turns subscription periods into
// invoices, applies payments and failures, and runs the scheduled batches
// that keep every subscription's billing clock advancing.
type BillingService interface {
	GenerateInvoice(ctx context.Context, subscriptionID string) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	ProcessPayment(ctx context.Context, invoiceID string, req dto.ProcessPaymentRequest) (*dto.InvoiceResponse, error)
	MarkInvoiceFailed(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)
	GetBillingStatistics(ctx context.Context, timeRange *types.TimeRangeFilter) (*dto.BillingStatisticsResponse, error)

	// ProcessDueInvoices bills every active subscription whose next billing
	// date has arrived and rolls its period forward. Scheduled trigger body;
	// crosses tenants.
	ProcessDueInvoices(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error)
	// ProcessTrialExpirations converts trialing subscriptions whose trial has
	// ended to active, bills their first invoice and rolls the period
	// forward. It is the only code path that converts a trial. Scheduled
	// trigger body; crosses tenants.
	ProcessTrialExpirations(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error)
	// MarkOverdueInvoices fails pending invoices past the overdue grace
	// window. Scheduled trigger body; crosses tenants.
	MarkOverdueInvoices(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error)
	// ProcessPaymentReminders publishes a reminder event for pending invoices
	// due in exactly the configured lead time. Scheduled trigger body;
	// crosses tenants.
	ProcessPaymentReminders(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error)
}

type billingService struct {
	ServiceParams
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{ServiceParams: params}
}

// GenerateInvoice bills the subscription's current period ad hoc
func (s *billingService) GenerateInvoice(ctx context.Context, subscriptionID string) (*dto.InvoiceResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	inv, err := s.buildInvoice(ctx, sub, time.Now().UTC(), sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if err != nil {
		return nil, err
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *billingService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice ID is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *billingService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = &dto.InvoiceResponse{Invoice: inv}
	}

	response := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

// buildInvoice assembles, numbers and persists an invoice billing the given
// period: one line for the subscription itself plus one per active addon.
// The invoice number consumes the tenant's atomic per-year sequence.
func (s *billingService) buildInvoice(ctx context.Context, sub *domainSub.Subscription, now, periodStart, periodEnd time.Time) (*domainInvoice.Invoice, error) {
	addons, err := s.SubAddonRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	invoiceID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)

	lineItems := []*domainInvoice.LineItem{{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		InvoiceID:   invoiceID,
		Type:        types.InvoiceLineItemTypeSubscription,
		Description: sub.PlanName,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   sub.Price,
		Amount:      sub.Price,
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}}

	subtotal := sub.Price
	for _, sa := range addons {
		if !sa.IsActive {
			continue
		}
		amount := sa.Amount()
		lineItems = append(lineItems, &domainInvoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			InvoiceID:   invoiceID,
			Type:        types.InvoiceLineItemTypeAddon,
			Description: sa.AddonName,
			Quantity:    decimal.NewFromInt(int64(sa.Quantity)),
			UnitPrice:   sa.Price,
			Amount:      amount,
			PeriodStart: &periodStart,
			PeriodEnd:   &periodEnd,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		})
		subtotal = subtotal.Add(amount)
	}

	tax := subtotal.Mul(s.Config.Billing.TaxRate).Round(2)

	year := now.Year()
	seq, err := s.SequenceRepo.Next(ctx, types.GetTenantID(ctx), year)
	if err != nil {
		return nil, err
	}

	inv := &domainInvoice.Invoice{
		ID:             invoiceID,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		InvoiceNumber:  domainInvoice.FormatInvoiceNumber(year, seq),
		Currency:       sub.Currency,
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          subtotal.Add(tax),
		InvoiceStatus:  types.InvoiceStatusPending,
		IssueDate:      now,
		DueDate:        now.AddDate(0, 0, s.Config.Billing.InvoiceDueDays),
		LineItems:      lineItems,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("generated invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", sub.ID,
		"total", inv.Total,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventInvoiceCreated, map[string]any{
		"invoice_id":      inv.ID,
		"invoice_number":  inv.InvoiceNumber,
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
		"total":           inv.Total,
		"due_date":        inv.DueDate,
	}); err != nil {
		s.Logger.Errorw("failed to publish invoice created event", "error", err, "invoice_id", inv.ID)
	}

	return inv, nil
}

func (s *billingService) ProcessPayment(ctx context.Context, invoiceID string, req dto.ProcessPaymentRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		return nil, ierr.NewError("invoice is already paid").
			WithHint("A paid invoice can not be paid again").
			WithReportableDetails(map[string]any{"invoice_id": invoiceID}).
			Mark(ierr.ErrConflict)
	}

	now := time.Now().UTC()
	inv.InvoiceStatus = types.InvoiceStatusPaid
	inv.PaidAt = &now
	inv.PaymentMethod = req.PaymentMethod
	inv.TransactionID = req.TransactionID

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	// Ad hoc invoices may have no period row; that is not a failure
	period, err := s.PeriodRepo.GetByInvoice(ctx, invoiceID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if period != nil {
		period.PeriodStatus = types.PeriodStatusPaid
		if err := s.PeriodRepo.Update(ctx, period); err != nil {
			return nil, err
		}
	}

	// Payment squares the account: a past_due subscription recovers
	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err == nil && sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
		s.Logger.Infow("recovered past due subscription", "subscription_id", sub.ID)
	}

	s.Logger.Infow("processed payment",
		"invoice_id", invoiceID,
		"payment_method", req.PaymentMethod,
		"transaction_id", req.TransactionID,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventInvoicePaid, map[string]any{
		"invoice_id":      inv.ID,
		"subscription_id": inv.SubscriptionID,
		"customer_id":     inv.CustomerID,
		"total":           inv.Total,
		"payment_method":  req.PaymentMethod,
		"transaction_id":  req.TransactionID,
	}); err != nil {
		s.Logger.Errorw("failed to publish invoice paid event", "error", err, "invoice_id", inv.ID)
	}

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *billingService) MarkInvoiceFailed(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.markFailed(ctx, inv); err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *billingService) markFailed(ctx context.Context, inv *domainInvoice.Invoice) error {
	if inv.InvoiceStatus != types.InvoiceStatusPending {
		return ierr.NewError("invoice is not pending").
			WithHint("Only a pending invoice can be marked failed").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"status":     inv.InvoiceStatus,
			}).
			Mark(ierr.ErrConflict)
	}

	inv.InvoiceStatus = types.InvoiceStatusFailed
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return err
	}

	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return err
	}
	if !sub.SubscriptionStatus.IsTerminal() && sub.SubscriptionStatus != types.SubscriptionStatusPastDue {
		sub.SubscriptionStatus = types.SubscriptionStatusPastDue
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
	}

	s.Logger.Warnw("marked invoice failed",
		"invoice_id", inv.ID,
		"subscription_id", inv.SubscriptionID,
	)

	if err := s.Publisher.Publish(ctx, types.WebhookEventInvoiceFailed, map[string]any{
		"invoice_id":      inv.ID,
		"subscription_id": inv.SubscriptionID,
		"customer_id":     inv.CustomerID,
		"total":           inv.Total,
	}); err != nil {
		s.Logger.Errorw("failed to publish invoice failed event", "error", err, "invoice_id", inv.ID)
	}

	return nil
}

// advanceAndBill generates the invoice for the subscription's next period
// and rolls the period forward. The new period is seeded from the old
// currentPeriodEnd, never from now, so a late-running batch can not open a
// gap or overlap between consecutive periods.
func (s *billingService) advanceAndBill(ctx context.Context, sub *domainSub.Subscription, now time.Time) error {
	newStart := sub.CurrentPeriodEnd
	newEnd, err := types.NextBillingDate(newStart, sub.IntervalCount, sub.Interval)
	if err != nil {
		return err
	}

	inv, err := s.buildInvoice(ctx, sub, now, newStart, newEnd)
	if err != nil {
		return err
	}

	sub.CurrentPeriodStart = newStart
	sub.CurrentPeriodEnd = newEnd
	sub.NextBillingDate = newEnd
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	period := &domainSub.SubscriptionPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_PERIOD),
		SubscriptionID: sub.ID,
		StartDate:      newStart,
		EndDate:        newEnd,
		Amount:         inv.Subtotal,
		PeriodStatus:   types.PeriodStatusBilled,
		InvoiceID:      &inv.ID,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	return s.PeriodRepo.Create(ctx, period)
}

// ProcessDueInvoices advances every active subscription whose billing date
// has arrived. Trialing subscriptions are deliberately excluded: trial
// conversion belongs to ProcessTrialExpirations alone, so the two batches
// can overlap without double-converting anyone.
func (s *billingService) ProcessDueInvoices(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error) {
	subs, err := s.SubRepo.ListAllTenant(ctx, &types.SubscriptionFilter{
		QueryFilter:        types.NewNoLimitQueryFilter(),
		SubscriptionStatus: []types.SubscriptionStatus{types.SubscriptionStatusActive},
		NextBillingBefore:  &now,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.BatchRunResponse{Total: len(subs), Errors: make(map[string]string)}
	for _, candidate := range subs {
		if err := s.billDueSubscription(ctx, candidate.ID, candidate.TenantID, now); err != nil {
			s.Logger.Errorw("failed to bill due subscription",
				"error", err,
				"subscription_id", candidate.ID,
			)
			response.Failed++
			response.Errors[candidate.ID] = err.Error()
			continue
		}
		response.Succeeded++
	}

	s.Logger.Infow("processed due invoices",
		"total", response.Total,
		"succeeded", response.Succeeded,
		"failed", response.Failed,
	)
	return response, nil
}

func (s *billingService) billDueSubscription(ctx context.Context, subscriptionID, tenantID string, now time.Time) error {
	s.Locker.Lock(subscriptionID)
	defer s.Locker.Unlock(subscriptionID)

	tenantCtx := types.SetTenantID(ctx, tenantID)

	// Re-read under the lock: a concurrent batch may have advanced this
	// subscription between listing and locking
	sub, err := s.SubRepo.Get(tenantCtx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusActive || sub.NextBillingDate.After(now) {
		return nil
	}

	return s.advanceAndBill(tenantCtx, sub, now)
}

// ProcessTrialExpirations owns the trialing-to-active conversion. The
// freshly active subscription is billed its first invoice and its period
// rolls forward from the trial end boundary.
func (s *billingService) ProcessTrialExpirations(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error) {
	subs, err := s.SubRepo.ListAllTenant(ctx, &types.SubscriptionFilter{
		QueryFilter:        types.NewNoLimitQueryFilter(),
		SubscriptionStatus: []types.SubscriptionStatus{types.SubscriptionStatusTrialing},
		TrialEndBefore:     &now,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.BatchRunResponse{Total: len(subs), Errors: make(map[string]string)}
	for _, candidate := range subs {
		if err := s.convertTrial(ctx, candidate.ID, candidate.TenantID, now); err != nil {
			s.Logger.Errorw("failed to convert trial",
				"error", err,
				"subscription_id", candidate.ID,
			)
			response.Failed++
			response.Errors[candidate.ID] = err.Error()
			continue
		}
		response.Succeeded++
	}

	s.Logger.Infow("processed trial expirations",
		"total", response.Total,
		"succeeded", response.Succeeded,
		"failed", response.Failed,
	)
	return response, nil
}

func (s *billingService) convertTrial(ctx context.Context, subscriptionID, tenantID string, now time.Time) error {
	s.Locker.Lock(subscriptionID)
	defer s.Locker.Unlock(subscriptionID)

	tenantCtx := types.SetTenantID(ctx, tenantID)

	sub, err := s.SubRepo.Get(tenantCtx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusTrialing {
		return nil
	}
	if sub.TrialEnd == nil || sub.TrialEnd.After(now) {
		return nil
	}

	sub.SubscriptionStatus = types.SubscriptionStatusActive
	if err := s.SubRepo.Update(tenantCtx, sub); err != nil {
		return err
	}

	s.Logger.Infow("converted trial to active", "subscription_id", sub.ID)
	return s.advanceAndBill(tenantCtx, sub, now)
}

// MarkOverdueInvoices fails pending invoices whose due date passed more than
// the grace window ago
func (s *billingService) MarkOverdueInvoices(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error) {
	cutoff := now.AddDate(0, 0, -s.Config.Billing.OverdueGraceDays)

	invoices, err := s.InvoiceRepo.ListAllTenant(ctx, &types.InvoiceFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceStatus: []types.InvoiceStatus{types.InvoiceStatusPending},
		DueBefore:     &cutoff,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.BatchRunResponse{Total: len(invoices), Errors: make(map[string]string)}
	for _, inv := range invoices {
		tenantCtx := types.SetTenantID(ctx, inv.TenantID)
		if err := s.markFailed(tenantCtx, inv); err != nil {
			s.Logger.Errorw("failed to mark invoice overdue",
				"error", err,
				"invoice_id", inv.ID,
			)
			response.Failed++
			response.Errors[inv.ID] = err.Error()
			continue
		}
		response.Succeeded++
	}

	s.Logger.Infow("marked overdue invoices",
		"total", response.Total,
		"succeeded", response.Succeeded,
		"failed", response.Failed,
	)
	return response, nil
}

// ProcessPaymentReminders publishes a reminder for every pending invoice due
// in exactly the configured number of days
func (s *billingService) ProcessPaymentReminders(ctx context.Context, now time.Time) (*dto.BatchRunResponse, error) {
	dueDay := now.AddDate(0, 0, s.Config.Billing.ReminderLeadDays)

	invoices, err := s.InvoiceRepo.ListAllTenant(ctx, &types.InvoiceFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceStatus: []types.InvoiceStatus{types.InvoiceStatusPending},
		DueOn:         &dueDay,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.BatchRunResponse{Total: len(invoices), Errors: make(map[string]string)}
	for _, inv := range invoices {
		tenantCtx := types.SetTenantID(ctx, inv.TenantID)
		if err := s.Publisher.Publish(tenantCtx, types.WebhookEventInvoicePaymentReminder, map[string]any{
			"invoice_id":      inv.ID,
			"invoice_number":  inv.InvoiceNumber,
			"subscription_id": inv.SubscriptionID,
			"customer_id":     inv.CustomerID,
			"total":           inv.Total,
			"due_date":        inv.DueDate,
		}); err != nil {
			response.Failed++
			response.Errors[inv.ID] = err.Error()
			continue
		}
		response.Succeeded++
	}

	return response, nil
}

func (s *billingService) GetBillingStatistics(ctx context.Context, timeRange *types.TimeRangeFilter) (*dto.BillingStatisticsResponse, error) {
	invoices, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		QueryFilter:     types.NewNoLimitQueryFilter(),
		TimeRangeFilter: timeRange,
	})
	if err != nil {
		return nil, err
	}

	stats := &dto.BillingStatisticsResponse{
		TotalInvoices:  len(invoices),
		TotalRevenue:   decimal.Zero,
		PendingRevenue: decimal.Zero,
		CollectionRate: decimal.Zero,
	}
	for _, inv := range invoices {
		switch inv.InvoiceStatus {
		case types.InvoiceStatusPaid:
			stats.PaidInvoices++
			stats.TotalRevenue = stats.TotalRevenue.Add(inv.Total)
		case types.InvoiceStatusPending:
			stats.PendingInvoices++
			stats.PendingRevenue = stats.PendingRevenue.Add(inv.Total)
		case types.InvoiceStatusFailed:
			stats.FailedInvoices++
		}
	}

	if stats.TotalInvoices > 0 {
		stats.CollectionRate = decimal.NewFromInt(int64(stats.PaidInvoices)).
			Div(decimal.NewFromInt(int64(stats.TotalInvoices))).
			Mul(decimal.NewFromInt(100))
	}

	return stats, nil
}
