package orderbook

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type fakeLedger struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]int64
	settles   int
	rollbacks int
}

func newFakeLedger(cash string, positions map[string]int64) *fakeLedger {
	if positions == nil {
		positions = map[string]int64{}
	}
	return &fakeLedger{cash: decimal.RequireFromString(cash), positions: positions}
}

func (l *fakeLedger) CanAfford(side Side, security string, price decimal.Decimal, qty int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if side == BUY {
		return l.cash.GreaterThanOrEqual(price.Mul(decimal.NewFromInt(qty)))
	}
	return l.positions[security] >= qty
}

func (l *fakeLedger) Settle(security string, price decimal.Decimal, qty int64, side Side) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount := price.Mul(decimal.NewFromInt(qty))
	if side == BUY {
		if l.cash.LessThan(amount) {
			return ErrInsufficientFunds
		}
		l.cash = l.cash.Sub(amount)
		l.positions[security] += qty
	} else {
		if l.positions[security] < qty {
			return ErrInsufficientPosition
		}
		l.cash = l.cash.Add(amount)
		l.positions[security] -= qty
	}
	l.settles++
	return nil
}

func (l *fakeLedger) Rollback(security string, price decimal.Decimal, qty int64, side Side) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount := price.Mul(decimal.NewFromInt(qty))
	if side == BUY {
		l.cash = l.cash.Add(amount)
		l.positions[security] -= qty
	} else {
		l.cash = l.cash.Sub(amount)
		l.positions[security] += qty
	}
	l.rollbacks++
	return nil
}

type fakeLedgers map[string]*fakeLedger

func (f fakeLedgers) Ledger(participantID string) (Ledger, error) {
	l, ok := f[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	return l, nil
}

// richLedgers gives every participant plenty of cash and shares.
func richLedgers(security string, ids ...string) fakeLedgers {
	out := fakeLedgers{}
	for _, id := range ids {
		out[id] = newFakeLedger("1000000000", map[string]int64{security: 1_000_000_000})
	}
	return out
}

func newTestBook(ledgers LedgerProvider) *OrderBook {
	return NewOrderBook(OrderBookConfig{
		Security:       "ABC",
		ReferencePrice: decimal.NewFromInt(1),
		Ledgers:        ledgers,
	})
}

func px(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
