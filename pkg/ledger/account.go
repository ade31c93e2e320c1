package ledger

import (
	"fmt"
	"sync"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Account is one participant's trading ledger: a bank balance that can be
// moved into trading cash, the trading cash itself, and share positions.
// Every method takes the account mutex, so settlements coming from
// different books never interleave on the same account.
type Account struct {
	mu sync.Mutex

	participantID string
	bankBalance   decimal.Decimal
	cash          decimal.Decimal
	positions     map[string]int64
}

var _ orderbook.Ledger = (*Account)(nil)

func NewAccount(participantID string, bankBalance, cash decimal.Decimal, positions map[string]int64) *Account {
	pos := make(map[string]int64, len(positions))
	for k, v := range positions {
		pos[k] = v
	}
	return &Account{
		participantID: participantID,
		bankBalance:   bankBalance,
		cash:          cash,
		positions:     pos,
	}
}

func (a *Account) ParticipantID() string {
	return a.participantID
}

func notional(price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}

func (a *Account) CanAfford(side orderbook.Side, security string, price decimal.Decimal, qty int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch side {
	case orderbook.BUY:
		return a.cash.GreaterThanOrEqual(notional(price, qty))
	case orderbook.SELL:
		return a.positions[security] >= qty
	}
	return false
}

// Settle applies one leg of a trade. Nothing changes when it fails.
func (a *Account) Settle(security string, price decimal.Decimal, qty int64, side orderbook.Side) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	amount := notional(price, qty)
	switch side {
	case orderbook.BUY:
		if a.cash.LessThan(amount) {
			return fmt.Errorf("%w: %s needs %s for %d %s, has %s", ErrInsufficientFunds, a.participantID, amount, qty, security, a.cash)
		}
		a.cash = a.cash.Sub(amount)
		a.positions[security] += qty
	case orderbook.SELL:
		if held := a.positions[security]; held < qty {
			return fmt.Errorf("%w: %s holds %d %s, needs %d", ErrInsufficientPosition, a.participantID, held, security, qty)
		}
		a.cash = a.cash.Add(amount)
		a.positions[security] -= qty
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	return nil
}

// Rollback reverses a successful Settle with the same arguments.
func (a *Account) Rollback(security string, price decimal.Decimal, qty int64, side orderbook.Side) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	amount := notional(price, qty)
	switch side {
	case orderbook.BUY:
		if held := a.positions[security]; held < qty {
			return fmt.Errorf("%w: cannot return %d %s, holds %d", ErrInsufficientPosition, qty, security, held)
		}
		a.cash = a.cash.Add(amount)
		a.positions[security] -= qty
	case orderbook.SELL:
		if a.cash.LessThan(amount) {
			return fmt.Errorf("%w: cannot return %s, has %s", ErrInsufficientFunds, amount, a.cash)
		}
		a.cash = a.cash.Sub(amount)
		a.positions[security] += qty
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	return nil
}

// RequestCashTransfer moves amount from the bank balance into trading cash.
// It returns false and changes nothing when the bank cannot cover it.
func (a *Account) RequestCashTransfer(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bankBalance.LessThan(amount) {
		return false
	}
	a.bankBalance = a.bankBalance.Sub(amount)
	a.cash = a.cash.Add(amount)
	return true
}

func (a *Account) Cash() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

func (a *Account) BankBalance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bankBalance
}

func (a *Account) Position(security string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[security]
}

// Snapshot is a point-in-time copy of an account.
type Snapshot struct {
	ParticipantID string
	BankBalance   decimal.Decimal
	Cash          decimal.Decimal
	Positions     map[string]int64
}

// TotalCash is trading cash plus bank balance.
func (s Snapshot) TotalCash() decimal.Decimal {
	return s.Cash.Add(s.BankBalance)
}

func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos := make(map[string]int64, len(a.positions))
	for k, v := range a.positions {
		pos[k] = v
	}
	return Snapshot{
		ParticipantID: a.participantID,
		BankBalance:   a.bankBalance,
		Cash:          a.cash,
		Positions:     pos,
	}
}

// Restore builds an account from a snapshot.
func Restore(s Snapshot) *Account {
	return NewAccount(s.ParticipantID, s.BankBalance, s.Cash, s.Positions)
}
