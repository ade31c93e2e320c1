package exchange

import (
	"fmt"
	"sort"

	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// AdmissionRule vets an order before it reaches the book. lastPrice is the
// security's last execution price (or reference price).
type AdmissionRule interface {
	Check(order *orderbook.Order, lastPrice decimal.Decimal) error
}

type TickSizeTier struct {
	MaxPrice decimal.Decimal // zero = no upper bound
	Step     decimal.Decimal
}

// TickSizeRule requires prices to sit on the step of the first tier whose
// MaxPrice covers them. Securities without tiers fall back to Default.
type TickSizeRule struct {
	Default []TickSizeTier
	Tiers   map[string][]TickSizeTier
}

func NewTickSizeRule(defaultTiers []TickSizeTier, perSecurity map[string][]TickSizeTier) *TickSizeRule {
	r := &TickSizeRule{
		Default: sortTiers(defaultTiers),
		Tiers:   make(map[string][]TickSizeTier, len(perSecurity)),
	}
	for symbol, tiers := range perSecurity {
		r.Tiers[symbol] = sortTiers(tiers)
	}
	return r
}

// unbounded tiers go last
func sortTiers(tiers []TickSizeTier) []TickSizeTier {
	out := append([]TickSizeTier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].MaxPrice, out[j].MaxPrice
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.LessThan(b)
	})
	return out
}

func (r *TickSizeRule) Check(order *orderbook.Order, _ decimal.Decimal) error {
	tiers, ok := r.Tiers[order.Security]
	if !ok {
		tiers = r.Default
	}

	for _, tier := range tiers {
		if tier.MaxPrice.IsZero() || order.Price.LessThanOrEqual(tier.MaxPrice) {
			if tier.Step.IsPositive() && !order.Price.Mod(tier.Step).IsZero() {
				return fmt.Errorf("%w: %w: %s step %s", ErrInvalidOrder, errTickSize, order.Price, tier.Step)
			}
			return nil
		}
	}
	return nil
}

// PriceBandRule rejects limit prices further than Pct away from the last
// price, e.g. Pct 0.1 allows [0.9*last, 1.1*last].
type PriceBandRule struct {
	Pct decimal.Decimal
}

func (r *PriceBandRule) Check(order *orderbook.Order, lastPrice decimal.Decimal) error {
	if !r.Pct.IsPositive() || !lastPrice.IsPositive() {
		return nil
	}
	width := lastPrice.Mul(r.Pct)
	floor, ceil := lastPrice.Sub(width), lastPrice.Add(width)
	if order.Price.LessThan(floor) || order.Price.GreaterThan(ceil) {
		return fmt.Errorf("%w: %w: %s not in [%s, %s]", ErrInvalidOrder, errPriceBand, order.Price, floor, ceil)
	}
	return nil
}
