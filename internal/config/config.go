package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/vidinfra/subflow/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Scheduler  SchedulerConfig  `validate:"required"`
	Webhook    WebhookConfig    `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// BillingConfig carries the placeholder commercial policy of the engine.
// The tax rate is a flat placeholder; jurisdiction-specific rules are out
// of scope.
type BillingConfig struct {
	TaxRate            decimal.Decimal `mapstructure:"tax_rate"`
	InvoiceDueDays     int             `mapstructure:"invoice_due_days" validate:"min=0"`
	OverdueGraceDays   int             `mapstructure:"overdue_grace_days" validate:"min=0"`
	ReminderLeadDays   int             `mapstructure:"reminder_lead_days" validate:"min=0"`
	UsageRetentionDays int             `mapstructure:"usage_retention_days" validate:"min=1"`
}

// SchedulerConfig maps each trigger to its cron spec. Cadences are
// independent; coordination between overlapping triggers is the billing
// engine's job, not the scheduler's.
type SchedulerConfig struct {
	DueInvoices     string `mapstructure:"due_invoices"`
	TrialExpiration string `mapstructure:"trial_expiration"`
	CancelledExpiry string `mapstructure:"cancelled_expiry"`
	PastDueCheck    string `mapstructure:"past_due_check"`
	PaymentReminder string `mapstructure:"payment_reminder"`
	UsageRetention  string `mapstructure:"usage_retention"`
	ScheduledResume string `mapstructure:"scheduled_resume"`
}

type WebhookConfig struct {
	Topic string `mapstructure:"topic" validate:"required"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/subflow")

	v.SetEnvPrefix("SUBFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeServer))
	v.SetDefault("logging.level", string(types.LogLevelInfo))

	v.SetDefault("billing.tax_rate", "0.10")
	v.SetDefault("billing.invoice_due_days", 7)
	v.SetDefault("billing.overdue_grace_days", 7)
	v.SetDefault("billing.reminder_lead_days", 3)
	v.SetDefault("billing.usage_retention_days", 90)

	v.SetDefault("scheduler.due_invoices", "0 0 * * *")
	v.SetDefault("scheduler.trial_expiration", "0 * * * *")
	v.SetDefault("scheduler.cancelled_expiry", "30 0 * * *")
	v.SetDefault("scheduler.past_due_check", "0 */6 * * *")
	v.SetDefault("scheduler.payment_reminder", "0 9 * * *")
	v.SetDefault("scheduler.usage_retention", "0 2 * * 0")
	v.SetDefault("scheduler.scheduled_resume", "15 0 * * *")

	v.SetDefault("webhook.topic", "billing.events")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Billing.TaxRate.IsNegative() {
		return fmt.Errorf("billing tax rate must not be negative")
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// and tests. This is useful for running scripts or other non-web
// applications.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Billing: BillingConfig{
			TaxRate:            decimal.NewFromFloat(0.10),
			InvoiceDueDays:     7,
			OverdueGraceDays:   7,
			ReminderLeadDays:   3,
			UsageRetentionDays: 90,
		},
		Scheduler: SchedulerConfig{
			DueInvoices:     "0 0 * * *",
			TrialExpiration: "0 * * * *",
			CancelledExpiry: "30 0 * * *",
			PastDueCheck:    "0 */6 * * *",
			PaymentReminder: "0 9 * * *",
			UsageRetention:  "0 2 * * 0",
			ScheduledResume: "15 0 * * *",
		},
		Webhook: WebhookConfig{Topic: "billing.events"},
	}
}
