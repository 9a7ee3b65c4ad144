package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/marketplace/pkg/config"
)

// ConnectRedis создаёт клиент Redis и проверяет соединение.
// Ошибку ping вызывающий может трактовать как деградацию: дедупликация вебхуков работает fail-open.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return rdb, fmt.Errorf("ошибка ping Redis %s: %w", cfg.Addr(), err)
	}
	return rdb, nil
}
