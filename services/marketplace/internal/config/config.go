// Package config — конфигурация сервиса marketplace: HTTP, платёжные
// провайдеры и правила сверки поверх общей конфигурации pkg/config.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	shared "example.com/marketplace/pkg/config"
)

// Config — полная конфигурация marketplace.
type Config struct {
	shared.Config

	HTTP        HTTPConfig
	RateLimit   RateLimitConfig
	Marketplace MarketplaceConfig
	Outbox      OutboxConfig
	Stripe      StripeConfig
	Flutterwave FlutterwaveConfig
	PayPal      PayPalConfig
}

// HTTPConfig — HTTP сервер.
type HTTPConfig struct {
	Host         string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Addr возвращает адрес HTTP сервера.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig — ограничение запросов по IP.
type RateLimitConfig struct {
	Enabled       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsLimit int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// MarketplaceConfig — правила сверки и адреса возврата с платёжных страниц.
type MarketplaceConfig struct {
	SiteURL          string        `env:"SITE_URL" envDefault:"http://localhost:3000"`
	ApplicationFee   int64         `env:"SELLER_APPLICATION_FEE" envDefault:"10000"`
	FeeCurrency      string        `env:"SELLER_FEE_CURRENCY" envDefault:"XAF"`
	AdCurrency       string        `env:"AD_CURRENCY" envDefault:"XAF"`
	MaxAttempts      int           `env:"RECONCILE_MAX_ATTEMPTS" envDefault:"5"`
	WebhookDedupeTTL time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"24h"`
	CardGateway      string        `env:"CARD_GATEWAY" envDefault:"stripe"`
	GatewayTimeout   time.Duration `env:"PAYMENT_GATEWAY_TIMEOUT" envDefault:"10s"`
	// Карточные шлюзы списывают USD: курс XAF за доллар и минимальная сумма в центах.
	CardXAFPerUSD      decimal.Decimal `env:"CARD_XAF_PER_USD" envDefault:"650"`
	CardMinAmountCents int64           `env:"CARD_MIN_AMOUNT_CENTS" envDefault:"100"`
}

// Fee возвращает взнос за заявку продавца.
func (c MarketplaceConfig) Fee() decimal.Decimal {
	return decimal.NewFromInt(c.ApplicationFee)
}

// OutboxConfig — доставка событий в Kafka.
type OutboxConfig struct {
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	MaxRetries   int           `env:"OUTBOX_MAX_RETRIES" envDefault:"10"`
	Retention    time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"`
	// MaxBacklog — сверх этого числа неотправленных событий /readyz отвечает 503.
	MaxBacklog int64 `env:"OUTBOX_MAX_BACKLOG" envDefault:"10000"`
}

// StripeConfig — карточный шлюз со Stripe-совместимым API.
type StripeConfig struct {
	BaseURL       string `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"STRIPE_CURRENCY" envDefault:"usd"`
}

// Enabled — ключи заданы.
func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

// FlutterwaveConfig — шлюз мобильных денег.
type FlutterwaveConfig struct {
	BaseURL        string `env:"FLUTTERWAVE_BASE_URL" envDefault:"https://api.flutterwave.com"`
	SecretKey      string `env:"FLUTTERWAVE_SECRET_KEY"`
	WebhookHash    string `env:"FLUTTERWAVE_WEBHOOK_HASH"`
	PaymentOptions string `env:"FLUTTERWAVE_PAYMENT_OPTIONS" envDefault:"mobilemoneyghana,mobilemoneyrwanda,mobilemoneyzambia"`
	Title          string `env:"FLUTTERWAVE_TITLE" envDefault:"Marketplace"`
}

// Enabled — ключи заданы.
func (c FlutterwaveConfig) Enabled() bool { return c.SecretKey != "" }

// PayPalConfig — PayPal как карточный шлюз.
type PayPalConfig struct {
	ClientID     string `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	WebhookID    string `env:"PAYPAL_WEBHOOK_ID"`
	Live         bool   `env:"PAYPAL_LIVE" envDefault:"false"`
}

// Enabled — ключи заданы.
func (c PayPalConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет общую часть и выбор карточного шлюза.
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	switch c.Marketplace.CardGateway {
	case "stripe", "paypal":
	default:
		return fmt.Errorf("неизвестный карточный шлюз %q", c.Marketplace.CardGateway)
	}
	if !c.Marketplace.CardXAFPerUSD.IsPositive() {
		return fmt.Errorf("CARD_XAF_PER_USD должен быть положительным")
	}
	if c.Marketplace.CardMinAmountCents < 1 {
		return fmt.Errorf("CARD_MIN_AMOUNT_CENTS должен быть не меньше 1")
	}
	if c.Marketplace.MaxAttempts < 1 {
		return fmt.Errorf("RECONCILE_MAX_ATTEMPTS должен быть не меньше 1")
	}
	return nil
}
