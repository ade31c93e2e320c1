// Package marketdata turns book updates into ticks and fans them out to
// Kafka, NATS JetStream and a Redis latest-value cache.
package marketdata

import (
	"encoding/json"
	"time"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Trade is the public view of an execution; participant ids are not
// part of the feed.
type Trade struct {
	Price         decimal.Decimal `json:"price"`
	Qty           int64           `json:"qty"`
	AggressorSide orderbook.Side  `json:"aggressor_side"`
}

// Tick is the state of one security right after a submission.
type Tick struct {
	Security  string              `json:"security"`
	Bid       decimal.NullDecimal `json:"bid"`
	BidQty    int64               `json:"bid_qty"`
	Ask       decimal.NullDecimal `json:"ask"`
	AskQty    int64               `json:"ask_qty"`
	LastPrice decimal.Decimal     `json:"last_price"`
	Trades    []Trade             `json:"trades,omitempty"`
	Time      time.Time           `json:"time"`
}

func NewTick(u orderbook.BookUpdate, at time.Time) Tick {
	tick := Tick{
		Security:  u.Security,
		BidQty:    u.Quote.BidQty,
		AskQty:    u.Quote.AskQty,
		LastPrice: u.LastPrice,
		Time:      at,
	}
	if u.Quote.HasBid {
		tick.Bid = decimal.NewNullDecimal(u.Quote.Bid)
	}
	if u.Quote.HasAsk {
		tick.Ask = decimal.NewNullDecimal(u.Quote.Ask)
	}
	for _, t := range u.Trades {
		tick.Trades = append(tick.Trades, Trade{Price: t.Price, Qty: t.Qty, AggressorSide: t.AggressorSide})
	}
	return tick
}

func DecodeTick(data []byte) (Tick, error) {
	var tick Tick
	err := json.Unmarshal(data, &tick)
	return tick, err
}
