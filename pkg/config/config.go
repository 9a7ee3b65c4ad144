// Package config загружает общую конфигурацию сервисов маркетплейса из переменных окружения.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config — общая часть конфигурации marketplace и notifier.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Jaeger   JaegerConfig
	Metrics  MetricsConfig
}

// AppConfig — общие настройки процесса.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"marketplace"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Поддерживаемые драйверы хранилища.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Режимы применения схемы.
const (
	MigrateSQL  = "sql"  // версионные миграции golang-migrate
	MigrateAuto = "auto" // gorm AutoMigrate, только для разработки
	MigrateNone = "none"
)

// DatabaseConfig — подключение к реляционному хранилищу платёжных сущностей.
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"mysql"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"3306"`
	User            string        `env:"DB_USER" envDefault:"root"`
	Password        string        `env:"DB_PASSWORD" envDefault:"root"`
	Name            string        `env:"DB_NAME" envDefault:"marketplace"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	MigrateMode     string        `env:"DB_MIGRATE" envDefault:"sql"`
	MigrationsTable string        `env:"DB_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
	Debug           bool          `env:"DB_DEBUG" envDefault:"false"`
}

// DSN возвращает строку подключения в формате драйвера GORM.
// clientFoundRows: условный UPDATE считает совпавшие строки, а не изменённые.
func (c DatabaseConfig) DSN() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL возвращает URL базы в формате golang-migrate.
// Свой MigrationsTable позволяет marketplace и notifier делить одну базу.
func (c DatabaseConfig) MigrateURL() string {
	user := url.UserPassword(c.User, c.Password)
	table := url.QueryEscape(c.MigrationsTable)
	if c.Driver == DriverPostgres {
		return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s&x-migrations-table=%s",
			user.String(), c.Host, c.Port, c.Name, c.SSLMode, table)
	}
	return fmt.Sprintf("mysql://%s@tcp(%s:%d)/%s?multiStatements=true&x-migrations-table=%s",
		user.String(), c.Host, c.Port, c.Name, table)
}

// RedisConfig — Redis для дедупликации вебхуков, rate limit и blacklist токенов.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig — шина событий платёжных сущностей.
type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic         string   `env:"KAFKA_PAYABLE_TOPIC" envDefault:"payable.events"`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"marketplace-notifier"`
}

// JWTConfig — проверка токенов, выпущенных внешним identity-провайдером (RS256).
type JWTConfig struct {
	PublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required,notEmpty"`
	Issuer        string `env:"JWT_ISSUER" envDefault:"marketplace-identity"`
}

// JaegerConfig — экспорт трейсов по OTLP gRPC.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig — отдельный HTTP сервер для Prometheus и проб.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

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

// Validate проверяет значения, которые env не может проверить тегами.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.PublicKeyPath) == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH не задан")
	}
	return c.Database.Validate()
}

// Validate проверяет драйвер и режим миграций.
func (c DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("неизвестный драйвер БД %q", c.Driver)
	}
	switch c.MigrateMode {
	case MigrateSQL, MigrateAuto, MigrateNone:
	default:
		return fmt.Errorf("неизвестный режим миграций %q", c.MigrateMode)
	}
	return nil
}

// IsDevelopment возвращает true в development окружении.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
