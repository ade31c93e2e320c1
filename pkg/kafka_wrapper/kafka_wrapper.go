// Package kafkawrapper publishes keyed JSON messages to Kafka and runs a
// small worker pool that consumes a topic in batches.
package kafkawrapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var errNotInitialized = errors.New("kafka client not initialized")

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
}

type ProducerConfig struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	BatchSize      int      `yaml:"batch_size"`
	BatchTimeoutMs int      `yaml:"batch_timeout_ms"`
	Async          bool     `yaml:"async"`
}

type Producer struct {
	w     *kafka.Writer
	topic string
}

// NewProducer builds a writer that hashes keys to partitions, so every
// message with the same key lands on one partition in publish order.
func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeoutMs == 0 {
		cfg.BatchTimeoutMs = 50
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  cfg.Async,
	}
	return &Producer{w: wr, topic: cfg.Topic}
}

func (p *Producer) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return errNotInitialized
	}
	var kh []kafka.Header
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     key,
		Value:   value,
		Headers: kh,
		Time:    time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, key string, v any, headers map[string]string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, []byte(key), b, headers)
}

func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

type ConsumerConfig struct {
	Brokers        []string `yaml:"brokers"`
	GroupID        string   `yaml:"group_id"`
	Topic          string   `yaml:"topic"`
	WorkerCount    int      `yaml:"worker_count"`
	MaxRetries     int      `yaml:"max_retries"`
	BackoffMinMs   int      `yaml:"backoff_min_ms"`
	BackoffMaxMs   int      `yaml:"backoff_max_ms"`
	BatchSize      int      `yaml:"batch_size"`
	BatchTimeoutMs int      `yaml:"batch_timeout_ms"`
}

func (c *ConsumerConfig) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffMinMs == 0 {
		c.BackoffMinMs = 100
	}
	if c.BackoffMaxMs == 0 {
		c.BackoffMaxMs = 10_000
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.BatchTimeoutMs == 0 {
		c.BatchTimeoutMs = 200
	}
}

type ConsumerGroup struct {
	r   *kafka.Reader
	cfg ConsumerConfig
}

func NewConsumerGroup(cfg ConsumerConfig) *ConsumerGroup {
	cfg.applyDefaults()

	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})
	return &ConsumerGroup{r: rd, cfg: cfg}
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil || cg.r == nil {
		return nil
	}
	return cg.r.Close()
}

// Run delivers batches to handler until ctx is done. A batch is committed
// after handler succeeds or after MaxRetries failed attempts.
func (cg *ConsumerGroup) Run(ctx context.Context, handler func(context.Context, []Message) error) error {
	if cg == nil || cg.r == nil {
		return errNotInitialized
	}

	batches := make(chan []kafka.Message, cg.cfg.WorkerCount)
	go cg.fetchLoop(ctx, batches)

	done := make(chan struct{}, cg.cfg.WorkerCount)
	for i := 0; i < cg.cfg.WorkerCount; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for ms := range batches {
				cg.handleBatch(ctx, ms, handler)
			}
		}()
	}

	for i := 0; i < cg.cfg.WorkerCount; i++ {
		<-done
	}
	return ctx.Err()
}

func (cg *ConsumerGroup) fetchLoop(ctx context.Context, batches chan<- []kafka.Message) {
	defer close(batches)

	timeout := time.Duration(cg.cfg.BatchTimeoutMs) * time.Millisecond
	var buf []kafka.Message
	flush := func() bool {
		if len(buf) == 0 {
			return true
		}
		select {
		case batches <- buf:
			buf = nil
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		m, err := cg.r.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			buf = append(buf, m)
			if len(buf) >= cg.cfg.BatchSize && !flush() {
				return
			}
		case ctx.Err() != nil:
			flush()
			return
		case errors.Is(err, context.DeadlineExceeded):
			if !flush() {
				return
			}
		default:
			zap.S().Warnf("kafka fetch error: %v", err)
			time.Sleep(200 * time.Millisecond)
		}
	}
}

func (cg *ConsumerGroup) handleBatch(ctx context.Context, ms []kafka.Message, handler func(context.Context, []Message) error) {
	wrapped := make([]Message, len(ms))
	for i, m := range ms {
		wrapped[i] = wrapMessage(m)
	}

	minB := time.Duration(cg.cfg.BackoffMinMs) * time.Millisecond
	maxB := time.Duration(cg.cfg.BackoffMaxMs) * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := handler(ctx, wrapped)
		if err == nil {
			break
		}
		if attempt >= cg.cfg.MaxRetries {
			zap.S().Errorf("dropping batch of %d after %d attempts: %v", len(ms), attempt+1, err)
			break
		}
		select {
		case <-time.After(backoffDuration(minB, maxB, attempt+1)):
		case <-ctx.Done():
			return
		}
	}

	if err := cg.r.CommitMessages(ctx, ms...); err != nil {
		zap.S().Warnf("commit failed: %v", fmt.Errorf("topic %s: %w", cg.cfg.Topic, err))
	}
}

func wrapMessage(m kafka.Message) Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headers,
	}
}

func backoffDuration(min, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	pow := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(min) * pow)
	if d > max {
		d = max
	}
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}
