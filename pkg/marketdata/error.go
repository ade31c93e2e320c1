package marketdata

import "errors"

var ErrNoQuote = errors.New("no cached quote")
