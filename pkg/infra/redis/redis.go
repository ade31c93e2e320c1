package redis_wrapper

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisConfig struct {
	ConnectionURL       string `yaml:"connection_url"`
	PoolSize            int    `yaml:"pool_size"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
	KeyPrefix           string `yaml:"key_prefix"`
	TTLSeconds          int    `yaml:"ttl_seconds"`
}

func (c *RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// InitRedis parses the url, applies the pool settings and pings once.
func InitRedis(ctx context.Context, redisCfg *RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisCfg.ConnectionURL)
	if err != nil {
		zap.S().Debugf("parse redis url fail: %+v", err)
		return nil, err
	}

	if redisCfg.PoolSize > 0 {
		opts.PoolSize = redisCfg.PoolSize
	}
	if redisCfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = time.Duration(redisCfg.DialTimeoutSeconds) * time.Second
	}
	if redisCfg.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = time.Duration(redisCfg.ReadTimeoutSeconds) * time.Second
	}
	if redisCfg.WriteTimeoutSeconds > 0 {
		opts.WriteTimeout = time.Duration(redisCfg.WriteTimeoutSeconds) * time.Second
	}
	opts.ConnMaxIdleTime = time.Duration(redisCfg.IdleTimeoutSeconds) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	zap.S().Debug("connect to redis successful")
	return client, nil
}

// InitRedisWithBackoff keeps pinging until redis answers or ctx is done.
func InitRedisWithBackoff(ctx context.Context, redisCfg *RedisConfig) (*redis.Client, error) {
	var client *redis.Client
	err := backoff.Retry(func() error {
		var err error
		client, err = InitRedis(ctx, redisCfg)
		if err != nil {
			zap.S().Warnf("connect redis error: %v", err)
		}
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	return client, err
}
