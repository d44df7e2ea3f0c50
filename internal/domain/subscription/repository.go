package subscription

import (
	"context"

	"github.com/vidinfra/subflow/internal/types"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
	Update(ctx context.Context, subscription *Subscription) error

	// ListAllTenant lists matching subscriptions across every tenant.
	// Reserved for scheduled batch triggers; request-scoped callers must
	// use List.
	ListAllTenant(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
}

// AddonRepository defines the interface for subscription addon persistence
type AddonRepository interface {
	Create(ctx context.Context, addon *SubscriptionAddon) error
	Get(ctx context.Context, id string) (*SubscriptionAddon, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*SubscriptionAddon, error)
	ListActiveByAddon(ctx context.Context, addonID string) ([]*SubscriptionAddon, error)
	Update(ctx context.Context, addon *SubscriptionAddon) error
}

// PeriodRepository defines the interface for subscription period persistence
type PeriodRepository interface {
	Create(ctx context.Context, period *SubscriptionPeriod) error
	Get(ctx context.Context, id string) (*SubscriptionPeriod, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*SubscriptionPeriod, error)
	// GetByInvoice returns the period billed by the given invoice
	GetByInvoice(ctx context.Context, invoiceID string) (*SubscriptionPeriod, error)
	Update(ctx context.Context, period *SubscriptionPeriod) error
}
