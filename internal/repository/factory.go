package repository

import (
	"github.com/vidinfra/subflow/internal/domain/addon"
	"github.com/vidinfra/subflow/internal/domain/invoice"
	"github.com/vidinfra/subflow/internal/domain/plan"
	"github.com/vidinfra/subflow/internal/domain/subscription"
	"github.com/vidinfra/subflow/internal/domain/usage"
	memoryRepo "github.com/vidinfra/subflow/internal/repository/memory"
)

// The engine currently ships a single, in-memory storage backend. The
// factory keeps the wiring seam so a persistent backend can be slotted in
// per repository without touching the service layer.

func NewPlanRepository() plan.Repository {
	return memoryRepo.NewInMemoryPlanStore()
}

func NewAddonRepository() addon.Repository {
	return memoryRepo.NewInMemoryAddonStore()
}

func NewSubscriptionRepository() subscription.Repository {
	return memoryRepo.NewInMemorySubscriptionStore()
}

func NewSubscriptionAddonRepository() subscription.AddonRepository {
	return memoryRepo.NewInMemorySubscriptionAddonStore()
}

func NewSubscriptionPeriodRepository() subscription.PeriodRepository {
	return memoryRepo.NewInMemorySubscriptionPeriodStore()
}

func NewInvoiceRepository() invoice.Repository {
	return memoryRepo.NewInMemoryInvoiceStore()
}

func NewSequenceRepository() invoice.SequenceRepository {
	return memoryRepo.NewInMemorySequenceStore()
}

func NewUsageRepository() usage.Repository {
	return memoryRepo.NewInMemoryUsageStore()
}
