package simulation

import (
	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/shopspring/decimal"
)

type Trader struct {
	ID       string
	Account  *ledger.Account
	Strategy Strategy

	minBank decimal.Decimal
	active  bool
}

func NewTrader(account *ledger.Account, strategy Strategy, minBank decimal.Decimal) *Trader {
	return &Trader{
		ID:       account.ParticipantID(),
		Account:  account,
		Strategy: strategy,
		minBank:  minBank,
		active:   true,
	}
}

// Active reports whether the trader still trades. Once the bank balance
// drops below the minimum the trader is out for the rest of the session.
func (t *Trader) Active() bool {
	if t.active && t.Account.BankBalance().LessThan(t.minBank) {
		t.active = false
	}
	return t.active
}
