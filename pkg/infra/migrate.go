package infra

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// IMigrateTool applies the schema migrations of migration/sql.
type IMigrateTool interface {
	// Up migrates from the current version to the latest one.
	Up(source string, connStr string) error

	// Down rolls back every migration.
	Down(source string, connStr string) error
}

type migrateTool struct {
	mu sync.Mutex
}

var once sync.Once         // nolint
var singleton IMigrateTool // nolint

// GetMigrateTool get singleton instance for migrate tool
func GetMigrateTool() IMigrateTool { // nolint
	once.Do(func() {
		singleton = &migrateTool{}
	})
	return singleton
}

func (mt *migrateTool) open(source string, connStr string) (*migrate.Migrate, error) {
	mg, err := migrate.New(source, connStr)
	if err != nil {
		return nil, fmt.Errorf("create new migration: %w", err)
	}

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		mg.Close()
		return nil, err
	}
	if dirty {
		zap.S().Warnf("schema version %d is dirty, forcing back to %d", version, int(version)-1)
		if err := mg.Force(int(version) - 1); err != nil {
			mg.Close()
			return nil, err
		}
	}
	return mg, nil
}

func (mt *migrateTool) Up(source string, connStr string) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	zap.S().Info("migrating up...")
	mg, err := mt.open(source, connStr)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	zap.S().Info("migration done")
	return nil
}

func (mt *migrateTool) Down(source string, connStr string) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	zap.S().Info("migrating down...")
	mg, err := mt.open(source, connStr)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	zap.S().Info("rollback done")
	return nil
}
