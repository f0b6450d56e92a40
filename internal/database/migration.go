package database

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Migrator применяет встроенные SQL-миграции.
type Migrator struct {
	fsys   fs.FS
	path   string
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator создает мигратор; path - каталог миграций внутри fsys.
func NewMigrator(fsys fs.FS, path string, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{fsys: fsys, path: path, pool: pool, logger: logger.Named("Migrator")}
}

// Up применяет все доступные миграции
func (m *Migrator) Up() error {
	mg, err := m.create()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	m.logger.Info("Database migrations applied")
	return nil
}

// Down откатывает последнюю миграцию.
func (m *Migrator) Down() error {
	mg, err := m.create()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	m.logger.Info("Database migration rolled back")
	return nil
}

// Version возвращает текущую версию схемы. Для пустой базы - 0, false, nil.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.create()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force выставляет версию без применения миграций (после ручного исправления dirty-состояния).
func (m *Migrator) Force(version int) error {
	mg, err := m.create()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Force(version); err != nil {
		return fmt.Errorf("failed to force migration version: %w", err)
	}
	m.logger.Info("Database migration version forced", zap.Int("version", version))
	return nil
}

func (m *Migrator) create() (*migrate.Migrate, error) {
	db := stdlib.OpenDBFromPool(m.pool)
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	source, err := iofs.New(m.fsys, m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	mg.LockTimeout = 30 * time.Second
	return mg, nil
}

