package ledger

import (
	"errors"

	"github.com/joripage/exchange-sim/pkg/orderbook"
)

var (
	// aliases so callers can match either package's sentinel
	ErrInsufficientFunds    = orderbook.ErrInsufficientFunds
	ErrInsufficientPosition = orderbook.ErrInsufficientPosition
	ErrUnknownParticipant   = orderbook.ErrUnknownParticipant

	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrInvalidAmount        = errors.New("amount must be positive")
)
