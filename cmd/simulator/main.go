package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joripage/exchange-sim/config"
	"github.com/joripage/exchange-sim/pkg/exchange"
	redis_wrapper "github.com/joripage/exchange-sim/pkg/infra/redis"
	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/marketdata"
	"github.com/joripage/exchange-sim/pkg/simulation"
	"github.com/joripage/exchange-sim/pkg/store"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger.Zap())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionID := logging.NewSessionID()
	ctx = logging.WithSessionID(ctx, sessionID)

	if err := run(ctx, cfg, logger, sessionID); err != nil {
		logger.Fatal(ctx, "simulation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *logging.Logger, sessionID string) error {
	accounts, err := store.Open(cfg.AccountStore, cfg.OmsDB)
	if err != nil {
		return err
	}
	defer accounts.Close()

	securities, err := cfg.ExchangeSecurities()
	if err != nil {
		return err
	}
	rules, err := cfg.AdmissionRules()
	if err != nil {
		return err
	}

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	feed := marketdata.NewFeed(pub, cfg.MarketData.BufferSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// published with a fresh context so the tail of the session still
		// goes out after a shutdown signal
		_ = feed.Run(context.Background())
	}()

	registry := ledger.NewRegistry()
	ex, err := exchange.New(securities, registry,
		exchange.WithLogger(logger),
		exchange.WithRules(rules...),
		exchange.WithUpdateSink(feed),
	)
	if err != nil {
		return err
	}

	rng := simulation.NewRand(cfg.Simulation)
	saved, err := accounts.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	var traders []*simulation.Trader
	if len(saved) > 0 {
		logger.Info(ctx, "restoring traders from account store", zap.Int("traders", len(saved)))
		traders, err = simulation.TradersFromSnapshots(cfg.Simulation, saved, registry, rng)
	} else {
		traders, err = simulation.NewTraders(cfg.Simulation, ex.Securities(), registry, rng)
	}
	if err != nil {
		return err
	}

	sim, err := simulation.New(cfg.Simulation, ex, traders, rng,
		simulation.WithLogger(logger),
		simulation.WithSessionID(sessionID),
	)
	if err != nil {
		return err
	}

	report, runErr := sim.Run(ctx)
	feed.Close()
	wg.Wait()

	report.Log(ctx, logger)
	logger.Info(ctx, "market data feed",
		zap.Uint64("published", feed.Published()),
		zap.Uint64("dropped", feed.Dropped()),
	)

	if err := accounts.SaveAccounts(context.Background(), sessionID, report.Snapshots()); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func newPublisher(ctx context.Context, cfg *config.AppConfig) (marketdata.Publisher, error) {
	var pubs marketdata.Multi

	switch cfg.MarketData.Transport {
	case config.TransportKafka:
		pubs = append(pubs, marketdata.NewKafkaPublisher(cfg.MarketData.Kafka))
	case config.TransportNats:
		p, err := marketdata.NewNatsPublisher(cfg.MarketData.Nats)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}

	if cfg.MarketData.CacheInRedis {
		client, err := redis_wrapper.InitRedisWithBackoff(ctx, cfg.Redis)
		if err != nil {
			pubs.Close() // nolint
			return nil, err
		}
		pubs = append(pubs, &closingCache{
			RedisCache: marketdata.NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL()),
			close:      client.Close,
		})
	}

	if len(pubs) == 0 {
		return marketdata.Nop, nil
	}
	return pubs, nil
}

// closingCache closes the redis client it owns.
type closingCache struct {
	*marketdata.RedisCache
	close func() error
}

func (c *closingCache) Close() error {
	return c.close()
}
