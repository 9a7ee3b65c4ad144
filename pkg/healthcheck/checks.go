// Package healthcheck — проверки готовности для /readyz.
package healthcheck

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"example.com/marketplace/pkg/logger"
)

// Check — одна проверка готовности.
type Check func(ctx context.Context) error

// BacklogCounter — источник числа неотправленных событий (outbox.Repository).
type BacklogCounter interface {
	Backlog(ctx context.Context) (int64, error)
}

// CheckDatabase проверяет доступность реляционного хранилища.
func CheckDatabase(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// CheckRedis проверяет доступность Redis.
func CheckRedis(ctx context.Context, rdb redis.UniversalClient) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// CheckOutboxBacklog не пропускает трафик, пока в outbox больше limit
// неотправленных событий: уведомления отстают, а Kafka, скорее всего, лежит.
// limit <= 0 отключает проверку.
func CheckOutboxBacklog(ctx context.Context, counter BacklogCounter, limit int64) error {
	if limit <= 0 {
		return nil
	}
	n, err := counter.Backlog(ctx)
	if err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if n > limit {
		return fmt.Errorf("outbox: %d неотправленных событий (лимит %d)", n, limit)
	}
	return nil
}

// Degraded превращает проверку в необязательную: ошибка пишется в лог,
// но готовность не снимается. Для зависимостей с fail-open поведением.
func Degraded(name string, check Check) Check {
	return func(ctx context.Context) error {
		if err := check(ctx); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("dependency", name).Msg("Зависимость недоступна, работаем в деградированном режиме")
		}
		return nil
	}
}

// Composite объединяет проверки; первая ошибка прерывает цепочку.
func Composite(checks ...Check) Check {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
