package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vidinfra/subflow/internal/config"
	"github.com/vidinfra/subflow/internal/domain/addon"
	"github.com/vidinfra/subflow/internal/domain/invoice"
	"github.com/vidinfra/subflow/internal/domain/plan"
	"github.com/vidinfra/subflow/internal/domain/subscription"
	"github.com/vidinfra/subflow/internal/domain/usage"
	"github.com/vidinfra/subflow/internal/logger"
	"github.com/vidinfra/subflow/internal/repository/memory"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	PlanRepo     plan.Repository
	AddonRepo    addon.Repository
	SubRepo      subscription.Repository
	SubAddonRepo subscription.AddonRepository
	PeriodRepo   subscription.PeriodRepository
	InvoiceRepo  invoice.Repository
	SequenceRepo invoice.SequenceRepository
	UsageRepo    usage.Repository
}

// BaseServiceTestSuite provides common functionality for all service test
// suites: in-memory stores, a capturing publisher and a tenant-scoped
// context, reset between tests.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryEventPublisher
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.publisher = NewInMemoryEventPublisher()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
	s.publisher.Clear()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PlanRepo:     memory.NewInMemoryPlanStore(),
		AddonRepo:    memory.NewInMemoryAddonStore(),
		SubRepo:      memory.NewInMemorySubscriptionStore(),
		SubAddonRepo: memory.NewInMemorySubscriptionAddonStore(),
		PeriodRepo:   memory.NewInMemorySubscriptionPeriodStore(),
		InvoiceRepo:  memory.NewInMemoryInvoiceStore(),
		SequenceRepo: memory.NewInMemorySequenceStore(),
		UsageRepo:    memory.NewInMemoryUsageStore(),
	}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PlanRepo.(*memory.InMemoryPlanStore).Clear()
	s.stores.AddonRepo.(*memory.InMemoryAddonStore).Clear()
	s.stores.SubRepo.(*memory.InMemorySubscriptionStore).Clear()
	s.stores.SubAddonRepo.(*memory.InMemorySubscriptionAddonStore).Clear()
	s.stores.PeriodRepo.(*memory.InMemorySubscriptionPeriodStore).Clear()
	s.stores.InvoiceRepo.(*memory.InMemoryInvoiceStore).Clear()
	s.stores.SequenceRepo.(*memory.InMemorySequenceStore).Clear()
	s.stores.UsageRepo.(*memory.InMemoryUsageStore).Clear()
}

// ClearStores resets every store mid-test
func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the capturing event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the timestamp taken at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// GetTenantID returns the tenant the test context is scoped to
func (s *BaseServiceTestSuite) GetTenantID() string {
	return types.GetTenantID(s.ctx)
}
