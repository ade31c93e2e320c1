package orderbook

import "github.com/shopspring/decimal"

// Ledger is the participant-side capability the book settles trades against.
// Implementations must make Settle all-or-nothing for their own balances.
type Ledger interface {
	// CanAfford is an admission-time check: cash for BUY, held position for SELL.
	CanAfford(side Side, security string, price decimal.Decimal, qty int64) bool
	// Settle applies one side of a trade. It returns ErrInsufficientFunds or
	// ErrInsufficientPosition (possibly wrapped) without mutating anything.
	Settle(security string, price decimal.Decimal, qty int64, side Side) error
	// Rollback undoes a Settle with identical arguments.
	Rollback(security string, price decimal.Decimal, qty int64, side Side) error
}

// LedgerProvider resolves the Ledger owned by a participant.
type LedgerProvider interface {
	Ledger(participantID string) (Ledger, error)
}
