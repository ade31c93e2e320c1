package marketdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, tick Tick) error
	Close() error
}

// Multi publishes every tick to each publisher in turn.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, tick Tick) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Tick) error { return nil }
func (nopPublisher) Close() error                        { return nil }

// Nop discards every tick.
var Nop Publisher = nopPublisher{}

// Feed decouples the books from the publishers. Offer never blocks: when
// the buffer is full the tick is dropped and counted.
type Feed struct {
	pub Publisher
	ch  chan Tick
	now func() time.Time

	mu     sync.RWMutex
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewFeed(pub Publisher, buffer int) *Feed {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Feed{
		pub: pub,
		ch:  make(chan Tick, buffer),
		now: time.Now,
	}
}

func (f *Feed) Offer(u orderbook.BookUpdate) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.dropped.Add(1)
		return
	}

	select {
	case f.ch <- NewTick(u, f.now()):
	default:
		f.dropped.Add(1)
	}
}

// Run publishes queued ticks until the feed is closed and drained, or ctx
// is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-f.ch:
			if !ok {
				return nil
			}
			if err := f.pub.Publish(ctx, tick); err != nil {
				zap.S().Warnf("publish tick %s failed: %v", tick.Security, err)
				continue
			}
			f.published.Add(1)
		}
	}
}

// Close stops accepting ticks; Run returns once the buffer is drained.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

func (f *Feed) Published() uint64 { return f.published.Load() }
func (f *Feed) Dropped() uint64   { return f.dropped.Load() }
