package orderbook

import "github.com/shopspring/decimal"

// MatchResult is one execution between a bid and an ask.
type MatchResult struct {
	Security      string
	BuyOrderID    string
	SellOrderID   string
	BuyerID       string
	SellerID      string
	Price         decimal.Decimal
	Qty           int64
	AggressorSide Side
}

// Notional is price * qty, the cash that moved from buyer to seller.
func (m *MatchResult) Notional() decimal.Decimal {
	return m.Price.Mul(decimal.NewFromInt(m.Qty))
}

// RemovedOrder is a resting order dropped because its owner could not settle.
type RemovedOrder struct {
	Order  Order
	Reason error
}

// SelfTradeSkip records a crossing pair left untouched because both
// orders belong to the same participant.
type SelfTradeSkip struct {
	ParticipantID string
	BidOrderID    string
	AskOrderID    string
}

// SubmitResult is everything one submission did to the book.
type SubmitResult struct {
	OrderID        string
	Sequence       uint64
	Remaining      int64
	Resting        bool
	Trades         []*MatchResult
	Removed        []RemovedOrder
	SelfTradeSkips []SelfTradeSkip
}

// FilledQty is the part of the submitted order executed during the call.
func (r *SubmitResult) FilledQty() int64 {
	var filled int64
	for _, t := range r.Trades {
		if t.BuyOrderID == r.OrderID || t.SellOrderID == r.OrderID {
			filled += t.Qty
		}
	}
	return filled
}

// Quote is the top of book; either side may be absent.
type Quote struct {
	Bid    decimal.Decimal
	BidQty int64
	HasBid bool
	Ask    decimal.Decimal
	AskQty int64
	HasAsk bool
}

// PriceLevel aggregates the resting quantity at one price.
type PriceLevel struct {
	Price  decimal.Decimal
	Qty    int64
	Orders int
}

// BookUpdate is passed to update callbacks after each submission.
type BookUpdate struct {
	Security  string
	Trades    []*MatchResult
	Quote     Quote
	LastPrice decimal.Decimal
}
