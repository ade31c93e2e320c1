package orderbook

import "github.com/shopspring/decimal"

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

func (s Side) Valid() bool {
	return s == BUY || s == SELL
}

// Order is a limit order resting in or entering a book. Only Qty changes
// after admission; it is decremented in place on partial fills.
type Order struct {
	ID            string
	ParticipantID string
	Security      string
	Side          Side
	Price         decimal.Decimal
	Qty           int64
	Sequence      uint64
}

// hasPriorityOver reports whether o sits ahead of other on the same side.
func (o *Order) hasPriorityOver(other *Order) bool {
	if !o.Price.Equal(other.Price) {
		if o.Side == BUY {
			return o.Price.GreaterThan(other.Price)
		}
		return o.Price.LessThan(other.Price)
	}
	return o.Sequence < other.Sequence
}

// Validate checks the fields every admitted order must carry.
func (o *Order) Validate() error {
	if !o.Side.Valid() {
		return errInvalidOrderSide
	}
	if !o.Price.IsPositive() {
		return errInvalidOrderPrice
	}
	if o.Qty <= 0 {
		return errInvalidOrderQty
	}
	return nil
}
