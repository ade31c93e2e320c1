package simulation

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrNoSecurities  = errors.New("exchange has no securities")
)
