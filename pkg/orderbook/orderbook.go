// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderBookConfig struct {
	Security       string
	ReferencePrice decimal.Decimal
	Ledgers        LedgerProvider
	// NextSequence hands out admission sequence numbers. It is called with
	// the book lock held so FIFO position always follows sequence order.
	NextSequence func() uint64
}

// OrderBook holds the resting bids and asks of one security. A single mutex
// covers a whole submit-and-match cycle.
type OrderBook struct {
	security string

	buyOrders  map[string]*deque.Deque[*Order]
	sellOrders map[string]*deque.Deque[*Order]

	buyHeap  *PriceHeap
	sellHeap *PriceHeap

	ledgers   LedgerProvider
	nextSeq   func() uint64
	lastPrice decimal.Decimal

	callbacks []func(BookUpdate)

	mu sync.Mutex
}

func NewOrderBook(cfg OrderBookConfig) *OrderBook {
	buyHeap := NewPriceHeap(func(i, j decimal.Decimal) bool { return i.GreaterThan(j) }) // Max-heap
	sellHeap := NewPriceHeap(func(i, j decimal.Decimal) bool { return i.LessThan(j) })   // Min-heap

	nextSeq := cfg.NextSequence
	if nextSeq == nil {
		var seq atomic.Uint64
		nextSeq = func() uint64 { return seq.Add(1) }
	}

	return &OrderBook{
		security:   cfg.Security,
		buyOrders:  make(map[string]*deque.Deque[*Order]),
		sellOrders: make(map[string]*deque.Deque[*Order]),
		buyHeap:    buyHeap,
		sellHeap:   sellHeap,
		ledgers:    cfg.Ledgers,
		nextSeq:    nextSeq,
		lastPrice:  cfg.ReferencePrice,
	}
}

func (ob *OrderBook) Security() string {
	return ob.security
}

// RegisterUpdateCallback adds fn to the callbacks run after every accepted
// submission. Callbacks run with the book locked and must not call back into it.
func (ob *OrderBook) RegisterUpdateCallback(fn func(BookUpdate)) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.callbacks = append(ob.callbacks, fn)
}

// Submit inserts the order on its side and crosses the book until no
// eligible pair is left. Matching completes before Submit returns.
func (ob *OrderBook) Submit(order *Order) (*SubmitResult, error) {
	if order.Security != ob.security {
		return nil, fmt.Errorf("%w: %s != %s", ErrSecurityMismatch, order.Security, ob.security)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	order.Sequence = ob.nextSeq()
	if order.Side == BUY {
		ob.addToBook(ob.buyOrders, ob.buyHeap, order)
	} else {
		ob.addToBook(ob.sellOrders, ob.sellHeap, order)
	}

	result := &SubmitResult{
		OrderID:  order.ID,
		Sequence: order.Sequence,
	}
	ob.match(order, result)

	result.Remaining = order.Qty
	result.Resting = ob.contains(order)

	if len(ob.callbacks) > 0 {
		update := BookUpdate{
			Security:  ob.security,
			Trades:    result.Trades,
			Quote:     ob.quote(),
			LastPrice: ob.lastPrice,
		}
		for _, cb := range ob.callbacks {
			cb(update)
		}
	}

	return result, nil
}

func (ob *OrderBook) match(aggressor *Order, result *SubmitResult) {
	skipped := make(map[[2]string]bool)

	for {
		bid, ask, ok := ob.nextPair(result, skipped)
		if !ok {
			return
		}
		ob.execute(aggressor, bid, ask, result)
	}
}

// nextPair returns the highest priority crossing pair owned by two different
// participants.
func (ob *OrderBook) nextPair(result *SubmitResult, skipped map[[2]string]bool) (*Order, *Order, bool) {
	bestBid := ob.front(ob.buyOrders, ob.buyHeap)
	bestAsk := ob.front(ob.sellOrders, ob.sellHeap)
	if bestBid == nil || bestAsk == nil {
		return nil, nil, false
	}
	if bestBid.Price.LessThan(bestAsk.Price) {
		return nil, nil, false
	}
	if bestBid.ParticipantID != bestAsk.ParticipantID {
		return bestBid, bestAsk, true
	}

	key := [2]string{bestBid.ID, bestAsk.ID}
	if !skipped[key] {
		skipped[key] = true
		result.SelfTradeSkips = append(result.SelfTradeSkips, SelfTradeSkip{
			ParticipantID: bestBid.ParticipantID,
			BidOrderID:    bestBid.ID,
			AskOrderID:    bestAsk.ID,
		})
	}

	return ob.scanCrossing(bestAsk.Price)
}

// scanCrossing walks bids priced at or above floor in priority order and
// pairs the first one that has a crossing ask from another participant.
// Only the crossed region of the book is visited.
func (ob *OrderBook) scanCrossing(floor decimal.Decimal) (*Order, *Order, bool) {
	askPrices := ob.sellHeap.Sorted()

	for _, bidPrice := range ob.buyHeap.Sorted() {
		if bidPrice.LessThan(floor) {
			break
		}
		bids := ob.buyOrders[priceKey(bidPrice)]
		for i := 0; i < bids.Len(); i++ {
			bid := bids.At(i)
			for _, askPrice := range askPrices {
				if askPrice.GreaterThan(bid.Price) {
					break
				}
				asks := ob.sellOrders[priceKey(askPrice)]
				for j := 0; j < asks.Len(); j++ {
					if ask := asks.At(j); ask.ParticipantID != bid.ParticipantID {
						return bid, ask, true
					}
				}
			}
		}
	}

	return nil, nil, false
}

func (ob *OrderBook) execute(aggressor, bid, ask *Order, result *SubmitResult) {
	// the earlier order was resting first and sets the price
	price := bid.Price
	if ask.Sequence < bid.Sequence {
		price = ask.Price
	}
	qty := min(bid.Qty, ask.Qty)

	buyer, err := ob.ledger(bid.ParticipantID)
	if err != nil {
		ob.drop(bid, err, result)
		return
	}
	seller, err := ob.ledger(ask.ParticipantID)
	if err != nil {
		ob.drop(ask, err, result)
		return
	}

	// Only this book moves positions in ob.security, so undoing the buyer's
	// leg cannot fail for lack of shares.
	if err := buyer.Settle(ob.security, price, qty, BUY); err != nil {
		ob.drop(bid, err, result)
		return
	}
	if err := seller.Settle(ob.security, price, qty, SELL); err != nil {
		if rbErr := buyer.Rollback(ob.security, price, qty, BUY); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback buyer %s: %w", bid.ParticipantID, rbErr))
		}
		ob.drop(ask, err, result)
		return
	}

	bid.Qty -= qty
	ask.Qty -= qty
	if bid.Qty == 0 {
		ob.remove(bid)
	}
	if ask.Qty == 0 {
		ob.remove(ask)
	}
	ob.lastPrice = price

	result.Trades = append(result.Trades, &MatchResult{
		Security:      ob.security,
		BuyOrderID:    bid.ID,
		SellOrderID:   ask.ID,
		BuyerID:       bid.ParticipantID,
		SellerID:      ask.ParticipantID,
		Price:         price,
		Qty:           qty,
		AggressorSide: aggressor.Side,
	})
}

func (ob *OrderBook) ledger(participantID string) (Ledger, error) {
	if ob.ledgers == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	return ob.ledgers.Ledger(participantID)
}

func (ob *OrderBook) drop(order *Order, reason error, result *SubmitResult) {
	ob.remove(order)
	result.Removed = append(result.Removed, RemovedOrder{Order: *order, Reason: reason})
}

func (ob *OrderBook) addToBook(book map[string]*deque.Deque[*Order], priceHeap *PriceHeap, order *Order) {
	key := priceKey(order.Price)
	if !priceHeap.Contains(order.Price) {
		book[key] = &deque.Deque[*Order]{}
		heap.Push(priceHeap, order.Price)
	}
	book[key].PushBack(order)
}

func (ob *OrderBook) sideOf(side Side) (map[string]*deque.Deque[*Order], *PriceHeap) {
	if side == BUY {
		return ob.buyOrders, ob.buyHeap
	}
	return ob.sellOrders, ob.sellHeap
}

func (ob *OrderBook) front(book map[string]*deque.Deque[*Order], priceHeap *PriceHeap) *Order {
	price, ok := priceHeap.Peek()
	if !ok {
		return nil
	}
	q := book[priceKey(price)]
	if q == nil || q.Len() == 0 {
		return nil
	}
	return q.Front()
}

func (ob *OrderBook) remove(order *Order) bool {
	book, priceHeap := ob.sideOf(order.Side)
	key := priceKey(order.Price)
	q := book[key]
	if q == nil {
		return false
	}

	idx := q.Index(func(o *Order) bool { return o == order })
	if idx < 0 {
		return false
	}
	q.Remove(idx)

	if q.Len() == 0 {
		delete(book, key)
		if i := priceHeap.indexOf(order.Price); i >= 0 {
			heap.Remove(priceHeap, i)
		}
	}
	return true
}

func (ob *OrderBook) contains(order *Order) bool {
	book, _ := ob.sideOf(order.Side)
	q := book[priceKey(order.Price)]
	return q != nil && q.Index(func(o *Order) bool { return o == order }) >= 0
}

func (ob *OrderBook) quote() Quote {
	var q Quote
	if price, ok := ob.buyHeap.Peek(); ok {
		q.Bid, q.HasBid = price, true
		q.BidQty = levelQty(ob.buyOrders[priceKey(price)])
	}
	if price, ok := ob.sellHeap.Peek(); ok {
		q.Ask, q.HasAsk = price, true
		q.AskQty = levelQty(ob.sellOrders[priceKey(price)])
	}
	return q
}

func levelQty(q *deque.Deque[*Order]) int64 {
	var total int64
	for i := 0; i < q.Len(); i++ {
		total += q.At(i).Qty
	}
	return total
}

// BestBidAsk returns the current top of book.
func (ob *OrderBook) BestBidAsk() Quote {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.quote()
}

// LastPrice is the latest execution price, or the reference price before
// the first trade.
func (ob *OrderBook) LastPrice() decimal.Decimal {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.lastPrice
}

// Depth aggregates up to levels price levels per side, best first.
// levels <= 0 returns every level.
func (ob *OrderBook) Depth(levels int) (bids, asks []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return collectLevels(ob.buyOrders, ob.buyHeap, levels), collectLevels(ob.sellOrders, ob.sellHeap, levels)
}

func collectLevels(book map[string]*deque.Deque[*Order], priceHeap *PriceHeap, levels int) []PriceLevel {
	prices := priceHeap.Sorted()
	if levels > 0 && len(prices) > levels {
		prices = prices[:levels]
	}

	out := make([]PriceLevel, 0, len(prices))
	for _, p := range prices {
		q := book[priceKey(p)]
		out = append(out, PriceLevel{Price: p, Qty: levelQty(q), Orders: q.Len()})
	}
	return out
}

// RestingOrders returns copies of one side's orders in priority order.
func (ob *OrderBook) RestingOrders(side Side) []Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	book, priceHeap := ob.sideOf(side)
	var out []Order
	for _, p := range priceHeap.Sorted() {
		q := book[priceKey(p)]
		for i := 0; i < q.Len(); i++ {
			out = append(out, *q.At(i))
		}
	}
	return out
}
