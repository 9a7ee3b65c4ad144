// Notifier — создаёт сообщения чата и уведомления по событиям платёжных
// сущностей из Kafka и передаёт их на push-рассылку.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/marketplace/pkg/db"
	"example.com/marketplace/pkg/healthcheck"
	"example.com/marketplace/pkg/kafka"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/pkg/tracing"
	"example.com/marketplace/services/notifier/internal/config"
	"example.com/marketplace/services/notifier/internal/consumer"
	"example.com/marketplace/services/notifier/internal/push"
	"example.com/marketplace/services/notifier/internal/repository"
	"example.com/marketplace/services/notifier/migrations"
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
		Str("group", cfg.Kafka.ConsumerGroup).
		Bool("sqs", cfg.SQS.Enabled).
		Msg("Запуск Notifier")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.App.Name,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Хранилище ===

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка подключения к БД")
	}
	if err := db.Migrate(gdb, cfg.Database, migrations.FS, repository.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("Ошибка миграций")
	}

	// === Push ===

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pusher push.Pusher = push.Nop{}
	if cfg.SQS.Enabled {
		sqsPusher, err := push.NewSQSPusher(ctx, cfg.SQS)
		if err != nil {
			logger.Fatal().Err(err).Msg("Ошибка настройки SQS")
		}
		pusher = sqsPusher
	}

	// === Kafka ===

	kafkaCfg := kafka.Config{Brokers: cfg.Kafka.Brokers, ConsumerGroup: cfg.Kafka.ConsumerGroup}
	kafkaConsumer, err := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topic)
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка создания Kafka consumer")
	}

	var dlqProducer *kafka.Producer
	if cfg.Consumer.DLQEnabled {
		dlqProducer, err = kafka.NewProducer(kafkaCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("Ошибка создания DLQ producer")
		}
		kafkaConsumer.SetDLQ(dlqProducer)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), cfg.App.Name,
			metrics.WithReadinessCheck(func(ctx context.Context) error {
				return healthcheck.CheckDatabase(ctx, gdb)
			}))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	handler := consumer.NewHandler(repository.NewRepository(gdb), pusher)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := handler.Run(ctx, kafkaConsumer, cfg.Consumer.MaxRetries)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Обработчик событий остановлен с ошибкой")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Получен сигнал завершения, останавливаем consumer...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := kafkaConsumer.Close(); err != nil {
		logger.Error().Err(err).Msg("Ошибка закрытия Kafka consumer")
	}
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия DLQ producer")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия БД")
		}
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	logger.Info().Msg("Notifier остановлен")
}
