package config

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, MigrateSQL, cfg.Database.MigrateMode)
	assert.Equal(t, "payable.events", cfg.Kafka.Topic)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_RequiresPublicKey(t *testing.T) {
	for _, value := range []string{"", "   "} {
		t.Run("значение "+strconv.Quote(value), func(t *testing.T) {
			t.Setenv("JWT_PUBLIC_KEY_PATH", value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "JWT_PUBLIC_KEY_PATH")
		})
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	my := DatabaseConfig{Driver: DriverMySQL, Host: "db", Port: 3306, User: "u", Password: "p", Name: "shop", MigrationsTable: "schema_migrations"}
	assert.Equal(t, "u:p@tcp(db:3306)/shop?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true", my.DSN())
	assert.Equal(t, "mysql://u:p@tcp(db:3306)/shop?multiStatements=true&x-migrations-table=schema_migrations", my.MigrateURL())

	pg := DatabaseConfig{Driver: DriverPostgres, Host: "db", Port: 5432, User: "u", Password: "p", Name: "shop", SSLMode: "disable", MigrationsTable: "notifier_migrations"}
	assert.Contains(t, pg.DSN(), "host=db port=5432")
	assert.Equal(t, "postgres://u:p@db:5432/shop?sslmode=disable&x-migrations-table=notifier_migrations", pg.MigrateURL())
}
