package simulation

import (
	"math/rand"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Snapshot is what a strategy sees of one security before acting.
type Snapshot struct {
	Security  string
	Quote     orderbook.Quote
	LastPrice decimal.Decimal
	Bids      []orderbook.PriceLevel
	Asks      []orderbook.PriceLevel
}

type OrderIntent struct {
	Side  orderbook.Side
	Price decimal.Decimal
	Qty   int64
}

// Strategy decides what, if anything, a trader submits. ok=false means
// sit this turn out.
type Strategy interface {
	Decide(snap Snapshot) (intent OrderIntent, ok bool)
}

// RandomStrategy buys or sells a fixed quantity at the best bid, the best
// ask or the mid when both sides are quoted, and otherwise within 5% of
// the last price.
type RandomStrategy struct {
	rng  *rand.Rand
	qty  int64
	tick decimal.Decimal
}

func NewRandomStrategy(rng *rand.Rand, qty int64, tick decimal.Decimal) *RandomStrategy {
	return &RandomStrategy{rng: rng, qty: qty, tick: tick}
}

var (
	two       = decimal.NewFromInt(2)
	lowerBand = decimal.RequireFromString("0.95")
	bandWidth = decimal.RequireFromString("0.10")
)

func (s *RandomStrategy) Decide(snap Snapshot) (OrderIntent, bool) {
	var price decimal.Decimal
	if snap.Quote.HasBid && snap.Quote.HasAsk {
		switch s.rng.Intn(3) {
		case 0:
			price = snap.Quote.Bid
		case 1:
			price = snap.Quote.Ask
		default:
			price = s.roundToTick(snap.Quote.Bid.Add(snap.Quote.Ask).Div(two))
		}
	} else {
		factor := lowerBand.Add(bandWidth.Mul(decimal.NewFromFloat(s.rng.Float64())))
		price = s.roundToTick(snap.LastPrice.Mul(factor))
	}
	if !price.IsPositive() {
		price = s.tick
	}

	side := orderbook.BUY
	if s.rng.Intn(2) == 1 {
		side = orderbook.SELL
	}

	return OrderIntent{Side: side, Price: price, Qty: s.qty}, true
}

func (s *RandomStrategy) roundToTick(p decimal.Decimal) decimal.Decimal {
	return p.Div(s.tick).Round(0).Mul(s.tick)
}
