package exchange

import (
	"context"
	"fmt"
	"testing"

	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

var participants = []string{"P1", "P2", "P3"}

func drawRequest(t *rapid.T, label string) OrderRequest {
	side := orderbook.BUY
	if rapid.Bool().Draw(t, label+"_sell") {
		side = orderbook.SELL
	}
	return OrderRequest{
		ParticipantID: rapid.SampledFrom(participants).Draw(t, label+"_participant"),
		Security:      "AAPL",
		Side:          side,
		Price:         decimal.New(int64(rapid.IntRange(90, 110).Draw(t, label+"_price")), -1),
		Qty:           int64(rapid.IntRange(1, 50).Draw(t, label+"_qty")),
	}
}

func newPropertyExchange(t *rapid.T, cash string, shares int64) (*Exchange, *ledger.Registry) {
	reg := ledger.NewRegistry()
	for _, id := range participants {
		if err := reg.Register(ledger.NewAccount(id, decimal.Zero, decimal.RequireFromString(cash), map[string]int64{"AAPL": shares})); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	ex, err := New([]Security{{Symbol: "AAPL", ReferencePrice: decimal.NewFromInt(10)}}, reg)
	if err != nil {
		t.Fatalf("new exchange: %v", err)
	}
	return ex, reg
}

// crossedPair returns a resting bid and ask that cross and belong to
// different participants, if any.
func crossedPair(ex *Exchange) (orderbook.Order, orderbook.Order, bool) {
	book, _ := ex.Book("AAPL")
	for _, bid := range book.RestingOrders(orderbook.BUY) {
		for _, ask := range book.RestingOrders(orderbook.SELL) {
			if bid.Price.GreaterThanOrEqual(ask.Price) && bid.ParticipantID != ask.ParticipantID {
				return bid, ask, true
			}
		}
	}
	return orderbook.Order{}, orderbook.Order{}, false
}

func TestPropertyBookNeverCrossedBetweenParticipants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// tight budgets so settlement failures show up too
		ex, _ := newPropertyExchange(t, "300", 40)
		n := rapid.IntRange(1, 60).Draw(t, "n")

		for i := 0; i < n; i++ {
			_, _ = ex.SubmitOrder(context.Background(), drawRequest(t, fmt.Sprintf("o%d", i)))

			if bid, ask, ok := crossedPair(ex); ok {
				t.Fatalf("book crossed after order %d: bid %+v ask %+v", i, bid, ask)
			}
		}
	})
}

func TestPropertyValueConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ex, reg := newPropertyExchange(t, "500", 60)
		n := rapid.IntRange(1, 60).Draw(t, "n")

		for i := 0; i < n; i++ {
			before := map[string]ledger.Snapshot{}
			for _, s := range reg.Snapshots() {
				before[s.ParticipantID] = s
			}

			h, err := ex.SubmitOrder(context.Background(), drawRequest(t, fmt.Sprintf("o%d", i)))
			if err != nil {
				continue
			}

			delta := map[string]decimal.Decimal{}
			for _, tr := range h.Trades {
				delta[tr.BuyerID] = delta[tr.BuyerID].Sub(tr.Notional())
				delta[tr.SellerID] = delta[tr.SellerID].Add(tr.Notional())
			}
			for _, s := range reg.Snapshots() {
				want := before[s.ParticipantID].Cash.Add(delta[s.ParticipantID])
				if !s.Cash.Equal(want) {
					t.Fatalf("participant %s cash %s, want %s", s.ParticipantID, s.Cash, want)
				}
			}
		}

		total := decimal.Zero
		var shares int64
		for _, s := range reg.Snapshots() {
			total = total.Add(s.Cash)
			shares += s.Positions["AAPL"]
			if s.Cash.IsNegative() || s.Positions["AAPL"] < 0 {
				t.Fatalf("negative balance for %s: %+v", s.ParticipantID, s)
			}
		}
		if !total.Equal(decimal.NewFromInt(1500)) || shares != 180 {
			t.Fatalf("cash %s shares %d not conserved", total, shares)
		}
	})
}

func TestPropertyEarlierBidFillsFirst(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ex, _ := newPropertyExchange(t, "1000000", 1000)
		ctx := context.Background()
		price := decimal.New(int64(rapid.IntRange(90, 110).Draw(t, "price")), -1)
		firstQty := int64(rapid.IntRange(1, 100).Draw(t, "first_qty"))
		secondQty := int64(rapid.IntRange(1, 100).Draw(t, "second_qty"))
		askQty := int64(rapid.IntRange(1, 200).Draw(t, "ask_qty"))

		first, err := ex.SubmitOrder(ctx, OrderRequest{ParticipantID: "P1", Security: "AAPL", Side: orderbook.BUY, Price: price, Qty: firstQty})
		if err != nil {
			t.Fatalf("first bid: %v", err)
		}
		if _, err := ex.SubmitOrder(ctx, OrderRequest{ParticipantID: "P2", Security: "AAPL", Side: orderbook.BUY, Price: price, Qty: secondQty}); err != nil {
			t.Fatalf("second bid: %v", err)
		}
		h, err := ex.SubmitOrder(ctx, OrderRequest{ParticipantID: "P3", Security: "AAPL", Side: orderbook.SELL, Price: price, Qty: askQty})
		if err != nil {
			t.Fatalf("ask: %v", err)
		}

		if len(h.Trades) == 0 || h.Trades[0].BuyOrderID != first.OrderID {
			t.Fatalf("earlier bid was not matched first: %+v", h.Trades)
		}
		if askQty < firstQty && len(h.Trades) != 1 {
			t.Fatalf("later bid traded before earlier bid was exhausted: %+v", h.Trades)
		}
	})
}
