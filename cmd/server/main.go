package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/vidinfra/subflow/internal/config"
	"github.com/vidinfra/subflow/internal/domain/proration"
	"github.com/vidinfra/subflow/internal/locker"
	"github.com/vidinfra/subflow/internal/logger"
	"github.com/vidinfra/subflow/internal/publisher"
	"github.com/vidinfra/subflow/internal/pubsub"
	pubsubMemory "github.com/vidinfra/subflow/internal/pubsub/memory"
	"github.com/vidinfra/subflow/internal/repository"
	"github.com/vidinfra/subflow/internal/scheduler"
	"github.com/vidinfra/subflow/internal/service"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// PubSub
			pubsubMemory.NewPubSub,

			// Event Publisher
			publisher.NewEventPublisher,

			// Batch coordination
			locker.NewKeyedLocker,

			// Proration seam
			proration.NewNoProration,

			// Repositories
			repository.NewPlanRepository,
			repository.NewAddonRepository,
			repository.NewSubscriptionRepository,
			repository.NewSubscriptionAddonRepository,
			repository.NewSubscriptionPeriodRepository,
			repository.NewInvoiceRepository,
			repository.NewSequenceRepository,
			repository.NewUsageRepository,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewPlanService,
			service.NewSubscriptionService,
			service.NewBillingService,
			service.NewUsageService,
			service.NewAnalyticsService,
		),
	)

	// Scheduler
	opts = append(opts,
		fx.Provide(
			scheduler.New,
			scheduler.NewDefaultJobs,
		),
		fx.Invoke(startEngine),
	)

	app := fx.New(opts...)
	app.Run()
}

func startEngine(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	sched *scheduler.Scheduler,
	jobs []scheduler.Job,
	pubSub pubsub.PubSub,
	eventPublisher publisher.EventPublisher,
	log *logger.Logger,
) error {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	if err := sched.RegisterAll(jobs); err != nil {
		return err
	}

	switch mode {
	case types.ModeLocal, types.ModeServer:
		startScheduler(lc, sched, log)
		startEventConsumer(lc, pubSub, cfg, log)
	case types.ModeScheduler:
		startScheduler(lc, sched, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return eventPublisher.Close()
		},
	})

	return nil
}

func startScheduler(
	lc fx.Lifecycle,
	sched *scheduler.Scheduler,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting scheduler...")
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down scheduler...")
			return sched.Stop(ctx)
		},
	})
}

func startEventConsumer(
	lc fx.Lifecycle,
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			messages, err := pubSub.Subscribe(context.Background(), cfg.Webhook.Topic)
			if err != nil {
				return err
			}
			go consumeEvents(messages, log)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down event consumer...")
			return nil
		},
	})
}

// consumeEvents drains the billing event topic. The shipped consumer only
// logs deliveries; an outbound webhook dispatcher would subscribe to the
// same topic.
func consumeEvents(messages <-chan *message.Message, log *logger.Logger) {
	for msg := range messages {
		var event types.WebhookEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			log.Errorw("failed to decode billing event", "error", err, "message_id", msg.UUID)
			msg.Nack()
			continue
		}

		log.Infow("billing event",
			"event_id", event.ID,
			"event_name", event.EventName,
			"tenant_id", event.TenantID,
		)
		msg.Ack()
	}
}
