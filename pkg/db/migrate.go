package db

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"example.com/marketplace/pkg/config"
	"example.com/marketplace/pkg/logger"
)

// Migrate приводит схему к актуальной версии.
// В режиме sql применяются версионные миграции из fsys/<driver>,
// в режиме auto — gorm AutoMigrate по переданным моделям.
func Migrate(gdb *gorm.DB, cfg config.DatabaseConfig, fsys fs.FS, models ...any) error {
	switch cfg.MigrateMode {
	case config.MigrateNone:
		return nil
	case config.MigrateAuto:
		if err := gdb.AutoMigrate(models...); err != nil {
			return fmt.Errorf("ошибка AutoMigrate: %w", err)
		}
		logger.Info().Int("models", len(models)).Msg("Схема обновлена через AutoMigrate")
		return nil
	}

	src, err := iofs.New(fsys, cfg.Driver)
	if err != nil {
		return fmt.Errorf("ошибка чтения миграций %s: %w", cfg.Driver, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info().
		Uint("version", version).
		Bool("dirty", dirty).
		Str("driver", cfg.Driver).
		Msg("Миграции применены")
	return nil
}
