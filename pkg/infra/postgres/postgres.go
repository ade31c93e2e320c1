package postgres_wrapper

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq" // nolint
	"go.uber.org/zap"
	pg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

type PostgresConfig struct {
	DataSource                 string          `yaml:"data_source"`
	MaxOpenConns               int             `yaml:"max_open_conns"`
	MaxIdleConns               int             `yaml:"max_idle_conns"`
	ConnMaxLifeTimeMiliseconds int64           `yaml:"conn_max_life_time_ms"`
	MigrationConnURL           string          `yaml:"migration_conn_url"`
	SlaveSources               []string        `yaml:"slave_sources"`
	LogLevel                   logger.LogLevel `yaml:"log_level"`
	Location                   string          `yaml:"location"`
	ConnectTimeoutSeconds      int             `yaml:"connect_timeout_seconds"`
}

// zapWriter sends gorm's log lines through the global sugared logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	zap.S().Debugf(format, args...)
}

// InitPostgres opens the primary and registers read replicas, if any.
func InitPostgres(cfg *PostgresConfig) (*gorm.DB, error) {
	loc := time.UTC
	if cfg.Location != "" {
		l, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("load location %q: %w", cfg.Location, err)
		}
		loc = l
	}

	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}
	gormLogger := logger.New(zapWriter{}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(pg.Open(cfg.DataSource), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().In(loc) },
	})
	if err != nil {
		zap.S().Debugf("open postgres fail: %+v", err)
		return nil, err
	}

	var repl []gorm.Dialector
	for _, s := range cfg.SlaveSources {
		repl = append(repl, pg.Open(s))
	}
	if len(repl) > 0 {
		zap.S().Debugf("register %d postgres replicas", len(repl))
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: repl,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			zap.S().Debugf("init postgres replicas fail: %+v", err)
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Debugf("get DB instance failed %v", err)
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTimeMiliseconds) * time.Millisecond)

	return db, nil
}

// InitPostgresWithBackoff retries InitPostgres with exponential backoff and
// panics once ConnectTimeoutSeconds (default 60) have passed.
func InitPostgresWithBackoff(cfg *PostgresConfig) *gorm.DB {
	var db *gorm.DB
	boff := backoff.NewExponentialBackOff()
	if cfg.ConnectTimeoutSeconds > 0 {
		boff.MaxElapsedTime = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	} else {
		boff.MaxElapsedTime = time.Minute
	}

	err := backoff.Retry(func() error {
		var err error
		db, err = InitPostgres(cfg)
		if err != nil {
			zap.S().Warnf("connect postgres error: %v", err)
		}
		return err
	}, boff)
	if err != nil {
		panic(err)
	}

	return db
}
