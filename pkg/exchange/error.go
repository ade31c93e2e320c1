package exchange

import (
	"errors"

	"github.com/joripage/exchange-sim/pkg/orderbook"
)

var (
	ErrUnknownSecurity = errors.New("unknown security")
	ErrInvalidSecurity = errors.New("invalid security config")

	ErrInvalidOrder         = orderbook.ErrInvalidOrder
	ErrUnknownParticipant   = orderbook.ErrUnknownParticipant
	ErrInsufficientFunds    = orderbook.ErrInsufficientFunds
	ErrInsufficientPosition = orderbook.ErrInsufficientPosition

	errTickSize  = errors.New("price is not a multiple of the tick size")
	errPriceBand = errors.New("price outside the allowed band")
)
