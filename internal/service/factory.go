package service

import (
	"github.com/vidinfra/subflow/internal/config"
	"github.com/vidinfra/subflow/internal/domain/addon"
	"github.com/vidinfra/subflow/internal/domain/invoice"
	"github.com/vidinfra/subflow/internal/domain/plan"
	"github.com/vidinfra/subflow/internal/domain/proration"
	"github.com/vidinfra/subflow/internal/domain/subscription"
	"github.com/vidinfra/subflow/internal/domain/usage"
	"github.com/vidinfra/subflow/internal/locker"
	"github.com/vidinfra/subflow/internal/logger"
	"github.com/vidinfra/subflow/internal/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// Repositories
	PlanRepo     plan.Repository
	AddonRepo    addon.Repository
	SubRepo      subscription.Repository
	SubAddonRepo subscription.AddonRepository
	PeriodRepo   subscription.PeriodRepository
	InvoiceRepo  invoice.Repository
	SequenceRepo invoice.SequenceRepository
	UsageRepo    usage.Repository

	Publisher publisher.EventPublisher
	Locker    *locker.KeyedLocker
	Proration proration.Calculator
}

// NewServiceParams assembles the common service dependencies
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	planRepo plan.Repository,
	addonRepo addon.Repository,
	subRepo subscription.Repository,
	subAddonRepo subscription.AddonRepository,
	periodRepo subscription.PeriodRepository,
	invoiceRepo invoice.Repository,
	sequenceRepo invoice.SequenceRepository,
	usageRepo usage.Repository,
	eventPublisher publisher.EventPublisher,
	locker *locker.KeyedLocker,
	prorationCalculator proration.Calculator,
) ServiceParams {
	return ServiceParams{
		Logger:       logger,
		Config:       config,
		PlanRepo:     planRepo,
		AddonRepo:    addonRepo,
		SubRepo:      subRepo,
		SubAddonRepo: subAddonRepo,
		PeriodRepo:   periodRepo,
		InvoiceRepo:  invoiceRepo,
		SequenceRepo: sequenceRepo,
		UsageRepo:    usageRepo,
		Publisher:    eventPublisher,
		Locker:       locker,
		Proration:    prorationCalculator,
	}
}
