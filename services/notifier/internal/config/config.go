// Package config — конфигурация notifier: Kafka consumer, хранилище
// уведомлений и очередь push-рассылки.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	shared "example.com/marketplace/pkg/config"
)

// MigrationsTable — таблица версий golang-migrate по умолчанию для notifier.
const MigrationsTable = "notifier_migrations"

// Config — полная конфигурация notifier. JWT и HTTP API ему не нужны,
// поэтому общие секции подключаются по отдельности.
type Config struct {
	App      shared.AppConfig
	Database shared.DatabaseConfig
	Kafka    shared.KafkaConfig
	Jaeger   shared.JaegerConfig
	Metrics  shared.MetricsConfig
	Consumer ConsumerConfig
	SQS      SQSConfig
}

// ConsumerConfig — обработка сообщений payable.events.
type ConsumerConfig struct {
	MaxRetries int  `env:"CONSUMER_MAX_RETRIES" envDefault:"3"`
	DLQEnabled bool `env:"CONSUMER_DLQ_ENABLED" envDefault:"true"`
}

// SQSConfig — очередь, из которой realtime-сервис рассылает push.
type SQSConfig struct {
	Enabled         bool   `env:"SQS_ENABLED" envDefault:"false"`
	Region          string `env:"SQS_REGION" envDefault:"eu-west-1"`
	QueueURL        string `env:"SQS_QUEUE_URL"`
	Endpoint        string `env:"SQS_ENDPOINT"` // localstack и т.п.
	AccessKeyID     string `env:"SQS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SQS_SECRET_ACCESS_KEY"`
}

// FIFO — очередь с гарантией порядка требует MessageGroupId.
func (c SQSConfig) FIFO() bool {
	return strings.HasSuffix(c.QueueURL, ".fifo")
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	// База может быть общей с marketplace: у notifier своя таблица версий.
	if _, ok := os.LookupEnv("DB_MIGRATIONS_TABLE"); !ok {
		cfg.Database.MigrationsTable = MigrationsTable
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет хранилище и настройки SQS.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.SQS.Enabled && c.SQS.QueueURL == "" {
		return fmt.Errorf("SQS_ENABLED=true, но SQS_QUEUE_URL не задан")
	}
	if c.Consumer.MaxRetries < 0 {
		return fmt.Errorf("CONSUMER_MAX_RETRIES не может быть отрицательным")
	}
	return nil
}
