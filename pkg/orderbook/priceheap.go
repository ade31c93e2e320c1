package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"
)

// priceKey normalizes a price so 10, 10.0 and 10.00 share one level.
func priceKey(p decimal.Decimal) string {
	return p.String()
}

// PriceHeap implements heap.Interface over distinct price levels.
type PriceHeap struct {
	prices []decimal.Decimal
	less   func(i, j decimal.Decimal) bool
	index  map[string]bool
}

func NewPriceHeap(less func(i, j decimal.Decimal) bool) *PriceHeap {
	return &PriceHeap{
		prices: []decimal.Decimal{},
		less:   less,
		index:  make(map[string]bool),
	}
}

func (h PriceHeap) Len() int {
	return len(h.prices)
}

func (h PriceHeap) Less(i, j int) bool {
	return h.less(h.prices[i], h.prices[j])
}

func (h PriceHeap) Swap(i, j int) {
	h.prices[i], h.prices[j] = h.prices[j], h.prices[i]
}

func (h *PriceHeap) Push(x any) {
	price := x.(decimal.Decimal)
	key := priceKey(price)
	if !h.index[key] {
		h.index[key] = true
		h.prices = append(h.prices, price)
	}
}

func (h *PriceHeap) Pop() any {
	n := len(h.prices)
	price := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.index, priceKey(price))
	return price
}

func (h *PriceHeap) Peek() (decimal.Decimal, bool) {
	if len(h.prices) == 0 {
		return decimal.Zero, false
	}
	return h.prices[0], true
}

func (h *PriceHeap) Contains(price decimal.Decimal) bool {
	return h.index[priceKey(price)]
}

// Sorted returns the levels best first without touching the heap.
func (h *PriceHeap) Sorted() []decimal.Decimal {
	out := make([]decimal.Decimal, len(h.prices))
	copy(out, h.prices)
	sort.Slice(out, func(i, j int) bool { return h.less(out[i], out[j]) })
	return out
}

// indexOf is linear; it only runs when a level empties below the top.
func (h *PriceHeap) indexOf(price decimal.Decimal) int {
	for i, p := range h.prices {
		if p.Equal(price) {
			return i
		}
	}
	return -1
}
