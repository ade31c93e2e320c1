package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/exchange-sim/config"
	redis_wrapper "github.com/joripage/exchange-sim/pkg/infra/redis"
	kafkawrapper "github.com/joripage/exchange-sim/pkg/kafka_wrapper"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/marketdata"
	"go.uber.org/zap"
)

// worker consumes the tick stream and keeps the redis quote cache current.
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

	if cfg.Redis == nil {
		logger.Fatal(ctx, "worker needs a redis section")
	}
	client, err := redis_wrapper.InitRedisWithBackoff(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal(ctx, "init redis fail", zap.Error(err))
	}
	defer client.Close()

	cache := marketdata.NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL())
	handle := func(ctx context.Context, tick marketdata.Tick) error {
		return cache.Publish(ctx, tick)
	}

	switch cfg.MarketData.Transport {
	case config.TransportKafka:
		cg := kafkawrapper.NewConsumerGroup(cfg.MarketData.KafkaConsumer)
		defer cg.Close()
		logger.Info(ctx, "consuming ticks from kafka", zap.String("topic", cfg.MarketData.KafkaConsumer.Topic))
		err = cg.Run(ctx, marketdata.KafkaTickHandler(handle))
	case config.TransportNats:
		consumer, cerr := marketdata.NewNatsConsumer(cfg.MarketData.Nats)
		if cerr != nil {
			logger.Fatal(ctx, "init nats consumer fail", zap.Error(cerr))
		}
		defer consumer.Close()
		logger.Info(ctx, "consuming ticks from nats", zap.String("stream", cfg.MarketData.Nats.Stream))
		err = consumer.Run(ctx, handle)
	default:
		logger.Fatal(ctx, "market_data.transport must be kafka or nats", zap.String("transport", cfg.MarketData.Transport))
	}

	if err != nil && ctx.Err() == nil {
		logger.Error(ctx, "worker stopped", zap.Error(err))
	}
	logger.Info(ctx, "worker exited")
}
