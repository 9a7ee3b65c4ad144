// Marketplace — сверка оплат заказов, заявок продавцов и рекламных кампаний.
// Предоставляет REST API и принимает вебхуки платёжных провайдеров.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"example.com/marketplace/pkg/db"
	"example.com/marketplace/pkg/healthcheck"
	"example.com/marketplace/pkg/jwt"
	"example.com/marketplace/pkg/kafka"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/pkg/outbox"
	"example.com/marketplace/pkg/tracing"
	"example.com/marketplace/services/marketplace/internal/config"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/handler"
	"example.com/marketplace/services/marketplace/internal/middleware"
	"example.com/marketplace/services/marketplace/internal/payment"
	"example.com/marketplace/services/marketplace/internal/repository"
	"example.com/marketplace/services/marketplace/internal/service"
	"example.com/marketplace/services/marketplace/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: cfg.App.Name,
	})

	logger.Info().
		Str("env", cfg.App.Env).
		Str("db", cfg.Database.Driver).
		Str("card_gateway", cfg.Marketplace.CardGateway).
		Msg("Запуск Marketplace")

	// === Observability ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.App.Name,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Хранилища ===

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка подключения к БД")
	}
	models := append(repository.Models(), &outbox.Model{})
	if err := db.Migrate(gdb, cfg.Database, migrations.FS, models...); err != nil {
		logger.Fatal().Err(err).Msg("Ошибка миграций")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("Подключение к БД установлено")

	// Без Redis сервис работает: дедупликация вебхуков и rate limit fail-open.
	redisClient, err := db.ConnectRedis(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis недоступен при старте, дедупликация и rate limit работают fail-open")
	} else {
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Подключено к Redis")
	}

	// === Kafka и outbox ===

	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка создания Kafka producer")
	}

	outboxRepo := outbox.NewRepository(gdb)
	worker := outbox.NewWorker(outboxRepo, producer, outbox.WorkerConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxRetries:   cfg.Outbox.MaxRetries,
		Retention:    cfg.Outbox.Retention,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	// === Платёжные шлюзы ===

	gateways, err := newGateways(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка настройки платёжных шлюзов")
	}

	engine := service.NewEngine(
		repository.NewPayableRepository(gdb, outboxRepo),
		repository.NewCatalogRepository(gdb),
		gateways,
		redisClient,
		service.Options{
			SiteURL:        cfg.Marketplace.SiteURL,
			ApplicationFee: cfg.Marketplace.Fee(),
			FeeCurrency:    cfg.Marketplace.FeeCurrency,
			AdCurrency:     cfg.Marketplace.AdCurrency,
			MaxAttempts:    cfg.Marketplace.MaxAttempts,
			DedupeTTL:      cfg.Marketplace.WebhookDedupeTTL,
		},
	)

	// === Middleware ===

	verifier, err := jwt.NewVerifier(cfg.JWT.PublicKeyPath, cfg.JWT.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка загрузки JWT ключа")
	}
	if redisClient != nil {
		verifier.SetBlacklist(jwt.NewBlacklist(redisClient))
	}

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled && redisClient != nil {
		rateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  redisClient,
			Limit:  cfg.RateLimit.RequestsLimit,
			Window: cfg.RateLimit.Window,
		})
		logger.Info().
			Int("limit", cfg.RateLimit.RequestsLimit).
			Dur("window", cfg.RateLimit.Window).
			Msg("Rate limiting включён")
	}

	ready := readiness(gdb, redisClient, outboxRepo, cfg.Outbox.MaxBacklog)

	router := handler.NewRouter(handler.RouterConfig{
		Service:        engine,
		AuthMW:         middleware.NewAuthMiddleware(verifier),
		RateLimitMW:    rateLimitMW,
		ReadinessCheck: ready,
		ServiceName:    cfg.App.Name,
		CardProvider:   cardProvider(cfg),
		Debug:          cfg.IsDevelopment(),
	})

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), cfg.App.Name, metrics.WithReadinessCheck(ready))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === HTTP сервер ===

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr()).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Ошибка при остановке сервера")
	}

	// Воркер останавливаем после HTTP: последние переходы успеют попасть в outbox.
	stopWorker()
	<-workerDone
	if n := worker.Flush(ctx); n > 0 {
		logger.Info().Int("published", n).Msg("Outbox дослан перед остановкой")
	}
	if err := producer.Close(); err != nil {
		logger.Error().Err(err).Msg("Ошибка закрытия Kafka producer")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия БД")
		}
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	logger.Info().Msg("Marketplace остановлен")
}

// newGateways регистрирует карточный шлюз по CARD_GATEWAY и мобильные деньги.
// Второй карточный провайдер, если настроен, принимает только вебхуки:
// по нему ещё могут приходить оплаты сессий, открытых до переключения.
func newGateways(cfg *config.Config) (*payment.Registry, error) {
	reg := payment.NewRegistry()
	timeout := cfg.Marketplace.GatewayTimeout
	pricing := payment.CardPricing{
		XAFPerUSD: cfg.Marketplace.CardXAFPerUSD,
		MinCents:  cfg.Marketplace.CardMinAmountCents,
	}

	var stripe *payment.Stripe
	if cfg.Stripe.Enabled() {
		stripe = payment.NewStripe(payment.StripeConfig{
			BaseURL:       cfg.Stripe.BaseURL,
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
			Timeout:       timeout,
			Pricing:       pricing,
		})
	}

	var paypal *payment.PayPal
	if cfg.PayPal.Enabled() {
		var err error
		paypal, err = payment.NewPayPal(payment.PayPalConfig{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			WebhookID:    cfg.PayPal.WebhookID,
			Live:         cfg.PayPal.Live,
			Pricing:      pricing,
		})
		if err != nil {
			return nil, fmt.Errorf("paypal: %w", err)
		}
	}

	switch cfg.Marketplace.CardGateway {
	case handler.ProviderPayPal:
		if paypal == nil {
			return nil, errors.New("CARD_GATEWAY=paypal, но PAYPAL_CLIENT_ID не задан")
		}
		reg.Register(domain.MethodCard, paypal)
		if stripe != nil {
			reg.RegisterWebhook(stripe)
		}
	default:
		if stripe != nil {
			reg.Register(domain.MethodCard, stripe)
		} else {
			logger.Warn().Msg("STRIPE_SECRET_KEY не задан, оплата картой недоступна")
		}
		if paypal != nil {
			reg.RegisterWebhook(paypal)
		}
	}

	if cfg.Flutterwave.Enabled() {
		reg.Register(domain.MethodMobileMoney, payment.NewFlutterwave(payment.FlutterwaveConfig{
			BaseURL:        cfg.Flutterwave.BaseURL,
			SecretKey:      cfg.Flutterwave.SecretKey,
			WebhookHash:    cfg.Flutterwave.WebhookHash,
			PaymentOptions: cfg.Flutterwave.PaymentOptions,
			Title:          cfg.Flutterwave.Title,
			Timeout:        timeout,
		}))
	} else {
		logger.Warn().Msg("FLUTTERWAVE_SECRET_KEY не задан, мобильные деньги недоступны")
	}

	return reg, nil
}

func cardProvider(cfg *config.Config) string {
	if cfg.Marketplace.CardGateway == handler.ProviderPayPal {
		return handler.ProviderPayPal
	}
	return handler.ProviderStripe
}

// readiness проверяет БД и Redis. Недоступный Redis не снимает сервис
// с балансировщика: вебхуки и rate limit работают без него.
func readiness(gdb *gorm.DB, rdb redis.UniversalClient, backlog healthcheck.BacklogCounter, maxBacklog int64) func(ctx context.Context) error {
	return healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckDatabase(ctx, gdb) },
		func(ctx context.Context) error { return healthcheck.CheckOutboxBacklog(ctx, backlog, maxBacklog) },
		// Redis работает в fail-open, его недоступность готовность не снимает.
		healthcheck.Degraded("redis", func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) }),
	)
}
