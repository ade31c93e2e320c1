package orderbook

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrSecurityMismatch     = errors.New("order security does not match book")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")

	errInvalidOrderPrice = fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	errInvalidOrderQty   = fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	errInvalidOrderSide  = fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidOrder)
)
