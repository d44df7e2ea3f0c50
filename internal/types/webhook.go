package types

import (
	"encoding/json"
	"time"
)

// Webhook event names published by the billing core. Delivery is
// fire-and-forget; a deployment needing guarantees should route the
// underlying topic through a durable outbox.
const (
	WebhookEventSubscriptionCreated     = "subscription.created"
	WebhookEventSubscriptionCancelled   = "subscription.cancelled"
	WebhookEventSubscriptionReactivated = "subscription.reactivated"
	WebhookEventSubscriptionPlanChanged = "subscription.plan_changed"
	WebhookEventSubscriptionPaused      = "subscription.paused"
	WebhookEventSubscriptionResumed     = "subscription.resumed"
	WebhookEventInvoiceCreated          = "invoice.created"
	WebhookEventInvoicePaid             = "invoice.paid"
	WebhookEventInvoiceFailed           = "invoice.failed"
	WebhookEventInvoicePaymentReminder  = "invoice.payment_reminder"
)

// WebhookEvent is the envelope published on the event channel. The payload
// always carries tenant_id and customer_id plus the subscription_id or
// invoice_id the event concerns.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	TenantID  string          `json:"tenant_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
