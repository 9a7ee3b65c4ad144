// Package testutil — общие утилиты тестов marketplace: SQLite в памяти,
// Redis на miniredis и моки внешних шлюзов.
package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"example.com/marketplace/pkg/outbox"
	"example.com/marketplace/services/marketplace/internal/payment"
)

// NewSQLiteDB открывает отдельную базу в памяти на тест и создаёт таблицы
// переданных моделей и outbox. Одно соединение: SQLite в памяти
// сериализует запись, условные UPDATE работают как в MySQL.
func NewSQLiteDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(append(models, &outbox.Model{})...))
	return db
}

// NewRedis поднимает miniredis и клиент к нему.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// =============================================================================
// MockGateway — мок payment.Gateway
// =============================================================================

// MockGateway — мок платёжного шлюза.
type MockGateway struct {
	mock.Mock
	GatewayName string
}

func (m *MockGateway) Name() string {
	if m.GatewayName == "" {
		return "mock"
	}
	return m.GatewayName
}

func (m *MockGateway) Initiate(ctx context.Context, c payment.Checkout) (*payment.Session, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}
