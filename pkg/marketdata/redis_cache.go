package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisCache keeps the latest tick of every security in a hash at
// <prefix>:<security>. It is a Publisher so it can sit in a Multi or
// behind a consumer.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "md"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(security string) string {
	return c.prefix + ":" + security
}

func (c *RedisCache) Publish(ctx context.Context, tick Tick) error {
	key := c.key(tick.Security)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, tickFields(tick))
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	return err
}

// Latest returns the cached tick without its trades.
func (c *RedisCache) Latest(ctx context.Context, security string) (Tick, error) {
	fields, err := c.client.HGetAll(ctx, c.key(security)).Result()
	if err != nil {
		return Tick{}, err
	}
	if len(fields) == 0 {
		return Tick{}, fmt.Errorf("%w: %s", ErrNoQuote, security)
	}
	return parseTickFields(security, fields)
}

func (c *RedisCache) Close() error {
	return nil
}

func tickFields(tick Tick) map[string]any {
	fields := map[string]any{
		"bid_qty":    tick.BidQty,
		"ask_qty":    tick.AskQty,
		"last_price": tick.LastPrice.String(),
		"updated_at": tick.Time.UTC().Format(time.RFC3339Nano),
	}
	if tick.Bid.Valid {
		fields["bid"] = tick.Bid.Decimal.String()
	}
	if tick.Ask.Valid {
		fields["ask"] = tick.Ask.Decimal.String()
	}
	return fields
}

func parseTickFields(security string, fields map[string]string) (Tick, error) {
	tick := Tick{Security: security}
	var err error

	if v, ok := fields["bid"]; ok {
		if tick.Bid.Decimal, err = decimal.NewFromString(v); err != nil {
			return Tick{}, fmt.Errorf("bid: %w", err)
		}
		tick.Bid.Valid = true
	}
	if v, ok := fields["ask"]; ok {
		if tick.Ask.Decimal, err = decimal.NewFromString(v); err != nil {
			return Tick{}, fmt.Errorf("ask: %w", err)
		}
		tick.Ask.Valid = true
	}
	if tick.LastPrice, err = decimal.NewFromString(fields["last_price"]); err != nil {
		return Tick{}, fmt.Errorf("last_price: %w", err)
	}
	if tick.BidQty, err = strconv.ParseInt(fields["bid_qty"], 10, 64); err != nil {
		return Tick{}, fmt.Errorf("bid_qty: %w", err)
	}
	if tick.AskQty, err = strconv.ParseInt(fields["ask_qty"], 10, 64); err != nil {
		return Tick{}, fmt.Errorf("ask_qty: %w", err)
	}
	if tick.Time, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return Tick{}, fmt.Errorf("updated_at: %w", err)
	}
	return tick, nil
}
