package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NatsConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Durable       string `yaml:"durable"`
}

func (c NatsConfig) withDefaults() NatsConfig {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Stream == "" {
		c.Stream = "TICKS"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "TICKS"
	}
	if c.Durable == "" {
		c.Durable = "tick_worker"
	}
	return c
}

// connectJetStream connects and makes sure the tick stream exists.
func connectJetStream(cfg NatsConfig) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".*"},
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, nil, fmt.Errorf("add stream %s: %w", cfg.Stream, err)
	}
	return nc, js, nil
}

// NatsPublisher publishes ticks on <prefix>.<security>.
type NatsPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

func NewNatsPublisher(cfg NatsConfig) (*NatsPublisher, error) {
	cfg = cfg.withDefaults()
	nc, js, err := connectJetStream(cfg)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{nc: nc, js: js, prefix: cfg.SubjectPrefix}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, tick Tick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.prefix+"."+tick.Security, data, nats.Context(ctx))
	return err
}

func (p *NatsPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}

// NatsConsumer pulls ticks from the stream with a durable consumer.
type NatsConsumer struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	cfg NatsConfig
}

func NewNatsConsumer(cfg NatsConfig) (*NatsConsumer, error) {
	cfg = cfg.withDefaults()
	nc, js, err := connectJetStream(cfg)
	if err != nil {
		return nil, err
	}
	return &NatsConsumer{nc: nc, js: js, cfg: cfg}, nil
}

// Run fetches ticks until ctx is done. A tick is acked once handle
// succeeds; undecodable messages are acked and dropped.
func (c *NatsConsumer) Run(ctx context.Context, handle func(context.Context, Tick) error) error {
	sub, err := c.js.PullSubscribe(c.cfg.SubjectPrefix+".*", c.cfg.Durable)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe() // nolint

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(10, nats.MaxWait(time.Second))
		if err != nil {
			if !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				zap.S().Warnf("nats fetch error: %v", err)
			}
			continue
		}

		for _, msg := range msgs {
			tick, err := DecodeTick(msg.Data)
			if err != nil {
				zap.S().Warnf("drop undecodable tick on %s: %v", msg.Subject, err)
				_ = msg.Ack()
				continue
			}
			if err := handle(ctx, tick); err != nil {
				zap.S().Warnf("handle tick %s: %v", tick.Security, err)
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
	return ctx.Err()
}

func (c *NatsConsumer) Close() error {
	c.nc.Close()
	return nil
}
