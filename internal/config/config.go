package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper). It is built once at
// startup and handed to constructors; services never read the environment.
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	Currency             string

	CommissionRate      float64 // fraction of the sale kept by the platform, 0..1
	PayoutDelay         time.Duration
	PayoutMinimum       float64
	PayoutRetryAttempts uint
	PendingPurchaseTTL  time.Duration
	AnalyticsCacheTTL   time.Duration

	SendinblueAPIKey string // SENDINBLUE_API_KEY for transactional emails (Brevo)
	MailFrom         string
	KafkaBrokers     []string
	KafkaTopic       string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("COMMISSION_RATE", 0.15)
	v.SetDefault("PAYOUT_DELAY", "168h")
	v.SetDefault("PAYOUT_MINIMUM", 10.0)
	v.SetDefault("PAYOUT_RETRY_ATTEMPTS", 3)
	v.SetDefault("PENDING_PURCHASE_TTL", "24h")
	v.SetDefault("ANALYTICS_CACHE_TTL", "30m")
	v.SetDefault("KAFKA_TOPIC", "marketplace.events")

	cfg := &Config{
		Env:                  v.GetString("APP_ENV"),
		Port:                 v.GetString("PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		SessionSecret:        v.GetString("SESSION_SECRET"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		RedisURL:             v.GetString("REDIS_URL"),
		FrontendURLEndsWith:  v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:          v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:    strings.EqualFold(v.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:       v.GetString("HEALTH_ADMIN_KEY"),
		StripeSecretKey:      v.GetString("STRIPE_SECRET_KEY"),
		StripePublishableKey: v.GetString("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookSecret:  v.GetString("STRIPE_WEBHOOK_SECRET"),
		Currency:             strings.ToLower(v.GetString("CURRENCY")),
		CommissionRate:       v.GetFloat64("COMMISSION_RATE"),
		PayoutDelay:          v.GetDuration("PAYOUT_DELAY"),
		PayoutMinimum:        v.GetFloat64("PAYOUT_MINIMUM"),
		PayoutRetryAttempts:  v.GetUint("PAYOUT_RETRY_ATTEMPTS"),
		PendingPurchaseTTL:   v.GetDuration("PENDING_PURCHASE_TTL"),
		AnalyticsCacheTTL:    v.GetDuration("ANALYTICS_CACHE_TTL"),
		SendinblueAPIKey:     v.GetString("SENDINBLUE_API_KEY"),
		MailFrom:             v.GetString("MAIL_FROM"),
		KafkaBrokers:         splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:           v.GetString("KAFKA_TOPIC"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot work with.
func (c *Config) Validate() error {
	if !(c.CommissionRate >= 0 && c.CommissionRate <= 1) {
		return fmt.Errorf("COMMISSION_RATE must be between 0 and 1, got %v", c.CommissionRate)
	}
	if c.PayoutDelay < 0 {
		return fmt.Errorf("PAYOUT_DELAY must not be negative")
	}
	if c.PayoutMinimum < 0 {
		return fmt.Errorf("PAYOUT_MINIMUM must not be negative")
	}
	if c.PayoutRetryAttempts == 0 {
		c.PayoutRetryAttempts = 1
	}
	if c.Currency == "" {
		c.Currency = "usd"
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
