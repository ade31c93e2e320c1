package store

import (
	"fmt"

	postgres_wrapper "github.com/joripage/exchange-sim/pkg/infra/postgres"
)

const (
	DriverMemory   = "memory"
	DriverPebble   = "pebble"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver     string `yaml:"driver"`
	PebblePath string `yaml:"pebble_path"`
}

// Open builds the configured store. pg is only read for the postgres
// driver; the connection is retried with backoff until it comes up.
func Open(cfg Config, pg *postgres_wrapper.PostgresConfig) (AccountStore, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewInMemoryStore(), nil
	case DriverPebble:
		path := cfg.PebblePath
		if path == "" {
			path = "data/accounts"
		}
		return NewPebbleStore(path)
	case DriverPostgres:
		if pg == nil {
			return nil, fmt.Errorf("%w: postgres driver without oms_db config", ErrUnknownDriver)
		}
		return NewAccountSQLRepo(postgres_wrapper.InitPostgresWithBackoff(pg)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
