package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/joripage/exchange-sim/pkg/exchange"
	postgres_wrapper "github.com/joripage/exchange-sim/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/exchange-sim/pkg/infra/redis"
	kafkawrapper "github.com/joripage/exchange-sim/pkg/kafka_wrapper"
	"github.com/joripage/exchange-sim/pkg/marketdata"
	"github.com/joripage/exchange-sim/pkg/simulation"
	"github.com/joripage/exchange-sim/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	TransportNone  = "none"
	TransportKafka = "kafka"
	TransportNats  = "nats"
)

var ErrInvalidConfig = errors.New("invalid config")

type SecurityConfig struct {
	Symbol         string `yaml:"symbol"`
	ReferencePrice string `yaml:"reference_price"`
}

type TickSizeConfig struct {
	MaxPrice string `yaml:"max_price"` // empty = no limit
	Step     string `yaml:"step"`
}

type AdmissionConfig struct {
	TickSizes         []TickSizeConfig            `yaml:"tick_sizes"`
	SecurityTickSizes map[string][]TickSizeConfig `yaml:"security_tick_sizes"`
	PriceBandPct      string                      `yaml:"price_band_pct"`
}

type MarketDataConfig struct {
	Transport     string                      `yaml:"transport"`
	BufferSize    int                         `yaml:"buffer_size"`
	CacheInRedis  bool                        `yaml:"cache_in_redis"`
	Kafka         kafkawrapper.ProducerConfig `yaml:"kafka"`
	KafkaConsumer kafkawrapper.ConsumerConfig `yaml:"kafka_consumer"`
	Nats          marketdata.NatsConfig       `yaml:"nats"`
}

type AppConfig struct {
	ServiceName  string                           `yaml:"service_name"`
	LogLevel     string                           `yaml:"log_level"`
	Securities   []SecurityConfig                 `yaml:"securities"`
	Admission    AdmissionConfig                  `yaml:"admission"`
	Simulation   simulation.Config                `yaml:"simulation"`
	AccountStore store.Config                     `yaml:"account_store"`
	OmsDB        *postgres_wrapper.PostgresConfig `yaml:"oms_db"`
	Redis        *redis_wrapper.RedisConfig       `yaml:"redis"`
	MarketData   MarketDataConfig                 `yaml:"market_data"`
}

// DefaultSecurities is the five-stock board used when the config lists none.
func DefaultSecurities() []SecurityConfig {
	return []SecurityConfig{
		{Symbol: "AAPL", ReferencePrice: "1"},
		{Symbol: "TSLA", ReferencePrice: "2"},
		{Symbol: "MSFT", ReferencePrice: "3"},
		{Symbol: "GOOG", ReferencePrice: "4"},
		{Symbol: "AMZN", ReferencePrice: "5"},
	}
}

// Load load config from file and environment variables. A .env file next
// to the working directory is applied first so ${VAR} references in the
// YAML can resolve from it.
func Load(filePath string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.S().Warnf("load .env: %v", err)
	}

	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}

	cfg, err := Parse(configBytes)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}

// Parse expands environment variables in data, decodes it and fills defaults.
func Parse(data []byte) (*AppConfig, error) {
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "exchange-sim"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.Securities) == 0 {
		cfg.Securities = DefaultSecurities()
	}
	if cfg.MarketData.Transport == "" {
		cfg.MarketData.Transport = TransportNone
	}
	cfg.Simulation = cfg.Simulation.WithDefaults()

	switch cfg.MarketData.Transport {
	case TransportNone, TransportKafka, TransportNats:
	default:
		return nil, fmt.Errorf("%w: market_data.transport %q", ErrInvalidConfig, cfg.MarketData.Transport)
	}
	if cfg.MarketData.CacheInRedis && cfg.Redis == nil {
		return nil, fmt.Errorf("%w: market_data.cache_in_redis needs a redis section", ErrInvalidConfig)
	}

	return cfg, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, field, s, err)
	}
	return d, nil
}

func (c *AppConfig) ExchangeSecurities() ([]exchange.Security, error) {
	out := make([]exchange.Security, 0, len(c.Securities))
	for _, s := range c.Securities {
		ref, err := parseDecimal("securities."+s.Symbol+".reference_price", s.ReferencePrice)
		if err != nil {
			return nil, err
		}
		out = append(out, exchange.Security{Symbol: s.Symbol, ReferencePrice: ref})
	}
	return out, nil
}

func parseTiers(field string, in []TickSizeConfig) ([]exchange.TickSizeTier, error) {
	tiers := make([]exchange.TickSizeTier, 0, len(in))
	for _, t := range in {
		var tier exchange.TickSizeTier
		var err error
		if t.MaxPrice != "" {
			if tier.MaxPrice, err = parseDecimal(field+".max_price", t.MaxPrice); err != nil {
				return nil, err
			}
		}
		if tier.Step, err = parseDecimal(field+".step", t.Step); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// AdmissionRules builds the configured rules; an empty section yields none.
func (c *AppConfig) AdmissionRules() ([]exchange.AdmissionRule, error) {
	var rules []exchange.AdmissionRule

	a := c.Admission
	if len(a.TickSizes) > 0 || len(a.SecurityTickSizes) > 0 {
		def, err := parseTiers("admission.tick_sizes", a.TickSizes)
		if err != nil {
			return nil, err
		}
		perSecurity := make(map[string][]exchange.TickSizeTier, len(a.SecurityTickSizes))
		for symbol, tiers := range a.SecurityTickSizes {
			if perSecurity[symbol], err = parseTiers("admission.security_tick_sizes."+symbol, tiers); err != nil {
				return nil, err
			}
		}
		rules = append(rules, exchange.NewTickSizeRule(def, perSecurity))
	}

	if a.PriceBandPct != "" {
		pct, err := parseDecimal("admission.price_band_pct", a.PriceBandPct)
		if err != nil {
			return nil, err
		}
		rules = append(rules, &exchange.PriceBandRule{Pct: pct})
	}

	return rules, nil
}
