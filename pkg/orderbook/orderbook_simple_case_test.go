package orderbook

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestSimpleMatch(t *testing.T) {
	ledgers := fakeLedgers{
		"A": newFakeLedger("5000", nil),
		"B": newFakeLedger("0", map[string]int64{"ABC": 500}),
	}
	ob := newTestBook(ledgers)

	if _, err := ob.Submit(&Order{ID: "B1", ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("10.00"), Qty: 500}); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	res, err := ob.Submit(&Order{ID: "S1", ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("9.50"), Qty: 500})
	if err != nil {
		t.Fatalf("submit sell: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 match, got %d", len(res.Trades))
	}
	match := res.Trades[0]
	if match.BuyOrderID != "B1" || match.SellOrderID != "S1" {
		t.Errorf("incorrect order IDs in match: %+v", match)
	}
	if match.Qty != 500 || !match.Price.Equal(px("10")) {
		t.Errorf("incorrect qty/price: %+v", match)
	}
	if !ledgers["A"].cash.IsZero() || ledgers["A"].positions["ABC"] != 500 {
		t.Errorf("buyer ledger wrong: cash=%s pos=%d", ledgers["A"].cash, ledgers["A"].positions["ABC"])
	}
	if !ledgers["B"].cash.Equal(px("5000")) || ledgers["B"].positions["ABC"] != 0 {
		t.Errorf("seller ledger wrong: cash=%s pos=%d", ledgers["B"].cash, ledgers["B"].positions["ABC"])
	}

	q := ob.BestBidAsk()
	if q.HasBid || q.HasAsk {
		t.Errorf("expected empty book, got %+v", q)
	}
	if !ob.LastPrice().Equal(px("10")) {
		t.Errorf("expected last price 10, got %s", ob.LastPrice())
	}
}

func TestNoMatchDueToPrice(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))

	_, _ = ob.Submit(&Order{ID: "S1", ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("100"), Qty: 10})
	res, _ := ob.Submit(&Order{ID: "B1", ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("98"), Qty: 10})

	if len(res.Trades) != 0 {
		t.Fatalf("expected no match, got %d", len(res.Trades))
	}
	if !res.Resting || res.Remaining != 10 {
		t.Errorf("expected buy to rest with 10, got %+v", res)
	}
	if !ob.LastPrice().Equal(px("1")) {
		t.Errorf("last price should stay at reference, got %s", ob.LastPrice())
	}
}

func TestPartialMatch(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B", "C"))

	_, _ = ob.Submit(&Order{ID: "B1", ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("100"), Qty: 1000})
	_, _ = ob.Submit(&Order{ID: "B2", ParticipantID: "C", Security: "ABC", Side: BUY, Price: px("100"), Qty: 50})
	res, _ := ob.Submit(&Order{ID: "S1", ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("100"), Qty: 400})

	if len(res.Trades) != 1 || res.Trades[0].Qty != 400 {
		t.Fatalf("expected one match of 400, got %+v", res.Trades)
	}
	if res.Resting {
		t.Errorf("ask should be fully removed")
	}

	bids := ob.RestingOrders(BUY)
	if len(bids) != 2 {
		t.Fatalf("expected 2 resting bids, got %d", len(bids))
	}
	if bids[0].ID != "B1" || bids[0].Qty != 600 {
		t.Errorf("expected B1 with 600 at head of level, got %+v", bids[0])
	}
	if len(ob.RestingOrders(SELL)) != 0 {
		t.Errorf("expected no asks left")
	}
}

func TestFIFOMatch(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B", "C"))

	_, _ = ob.Submit(&Order{ID: "S1", ParticipantID: "A", Security: "ABC", Side: SELL, Price: px("100"), Qty: 5})
	_, _ = ob.Submit(&Order{ID: "S2", ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("100.00"), Qty: 5})

	res, _ := ob.Submit(&Order{ID: "B1", ParticipantID: "C", Security: "ABC", Side: BUY, Price: px("100"), Qty: 7})
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res.Trades))
	}
	if res.Trades[0].SellOrderID != "S1" || res.Trades[1].SellOrderID != "S2" {
		t.Errorf("expected FIFO match order, got %+v %+v", res.Trades[0], res.Trades[1])
	}
	if res.Trades[1].Qty != 2 {
		t.Errorf("expected S2 to fill 2, got %d", res.Trades[1].Qty)
	}
}

func TestMultiLevelMatch(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))

	for i, p := range []string{"103", "101", "102"} {
		_, _ = ob.Submit(&Order{ID: fmt.Sprintf("S%d", i), ParticipantID: "A", Security: "ABC", Side: SELL, Price: px(p), Qty: 5})
	}

	res, _ := ob.Submit(&Order{ID: "B1", ParticipantID: "B", Security: "ABC", Side: BUY, Price: px("105"), Qty: 15})
	if len(res.Trades) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(res.Trades))
	}
	for i, want := range []string{"101", "102", "103"} {
		if !res.Trades[i].Price.Equal(px(want)) {
			t.Errorf("trade %d: expected price %s, got %s", i, want, res.Trades[i].Price)
		}
	}
	if res.FilledQty() != 15 || res.Resting {
		t.Errorf("expected buy fully filled, got %+v", res)
	}
}

func TestExecutionPriceIsRestingPrice(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))

	_, _ = ob.Submit(&Order{ID: "S1", ParticipantID: "A", Security: "ABC", Side: SELL, Price: px("9.5"), Qty: 10})
	res, _ := ob.Submit(&Order{ID: "B1", ParticipantID: "B", Security: "ABC", Side: BUY, Price: px("10"), Qty: 10})

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 match, got %d", len(res.Trades))
	}
	if !res.Trades[0].Price.Equal(px("9.5")) {
		t.Errorf("expected resting ask price 9.5, got %s", res.Trades[0].Price)
	}
	if res.Trades[0].AggressorSide != BUY {
		t.Errorf("expected BUY aggressor, got %s", res.Trades[0].AggressorSide)
	}
}

func TestValueConservation(t *testing.T) {
	ledgers := fakeLedgers{
		"A": newFakeLedger("10000", nil),
		"B": newFakeLedger("0", map[string]int64{"ABC": 1000}),
	}
	ob := newTestBook(ledgers)

	_, _ = ob.Submit(&Order{ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("3.25"), Qty: 300})
	_, _ = ob.Submit(&Order{ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("3.5"), Qty: 300})
	res, _ := ob.Submit(&Order{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("4"), Qty: 500})

	spent := px("10000").Sub(ledgers["A"].cash)
	received := ledgers["B"].cash
	if !spent.Equal(received) {
		t.Fatalf("cash leaked: buyer spent %s, seller received %s", spent, received)
	}
	var notional = px("0")
	for _, tr := range res.Trades {
		notional = notional.Add(tr.Notional())
	}
	if !notional.Equal(spent) {
		t.Errorf("notional %s != spent %s", notional, spent)
	}
	if ledgers["A"].positions["ABC"]+ledgers["B"].positions["ABC"] != 1000 {
		t.Errorf("shares not conserved: %d + %d", ledgers["A"].positions["ABC"], ledgers["B"].positions["ABC"])
	}
}

func TestSubmitRejectsInvalidOrders(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A"))

	cases := []*Order{
		{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("0"), Qty: 10},
		{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("-1"), Qty: 10},
		{ParticipantID: "A", Security: "ABC", Side: SELL, Price: px("1"), Qty: 0},
		{ParticipantID: "A", Security: "ABC", Side: "HOLD", Price: px("1"), Qty: 1},
	}
	for _, o := range cases {
		if _, err := ob.Submit(o); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("expected ErrInvalidOrder for %+v, got %v", o, err)
		}
	}

	_, err := ob.Submit(&Order{ParticipantID: "A", Security: "XYZ", Side: BUY, Price: px("1"), Qty: 1})
	if !errors.Is(err, ErrSecurityMismatch) {
		t.Errorf("expected ErrSecurityMismatch, got %v", err)
	}

	if q := ob.BestBidAsk(); q.HasBid || q.HasAsk {
		t.Errorf("rejected orders must not reach the book: %+v", q)
	}
}

func TestBestBidAskIdempotent(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))

	_, _ = ob.Submit(&Order{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("9.9"), Qty: 10})
	_, _ = ob.Submit(&Order{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("9.9"), Qty: 5})
	_, _ = ob.Submit(&Order{ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("10.1"), Qty: 7})

	first := ob.BestBidAsk()
	for i := 0; i < 5; i++ {
		q := ob.BestBidAsk()
		if !q.Bid.Equal(first.Bid) || !q.Ask.Equal(first.Ask) || q.BidQty != first.BidQty || q.AskQty != first.AskQty {
			t.Fatalf("quote changed without submissions: %+v vs %+v", q, first)
		}
	}
	if !first.Bid.Equal(px("9.9")) || first.BidQty != 15 || !first.Ask.Equal(px("10.1")) || first.AskQty != 7 {
		t.Errorf("unexpected quote %+v", first)
	}
}

func TestDepth(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))

	for _, p := range []string{"9", "8", "9", "7"} {
		_, _ = ob.Submit(&Order{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px(p), Qty: 1})
	}
	_, _ = ob.Submit(&Order{ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("11"), Qty: 3})

	bids, asks := ob.Depth(2)
	if len(bids) != 2 || !bids[0].Price.Equal(px("9")) || bids[0].Qty != 2 || bids[0].Orders != 2 {
		t.Errorf("unexpected bid depth %+v", bids)
	}
	if !bids[1].Price.Equal(px("8")) {
		t.Errorf("expected second level 8, got %s", bids[1].Price)
	}
	if len(asks) != 1 || asks[0].Qty != 3 {
		t.Errorf("unexpected ask depth %+v", asks)
	}
}

func TestHighVolumeOrders(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))
	trade := 0
	ob.RegisterUpdateCallback(func(u BookUpdate) {
		trade += len(u.Trades)
	})

	num := 10_000
	for i := 0; i < num; i++ {
		side, participant := BUY, "A"
		if i%2 == 0 {
			side, participant = SELL, "B"
		}
		_, err := ob.Submit(&Order{
			ID:            fmt.Sprintf("ORD-%d", i),
			ParticipantID: participant,
			Security:      "ABC",
			Side:          side,
			Price:         px("100"),
			Qty:           10,
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if trade != num/2 {
		t.Errorf("expected %d matching, got %d", num/2, trade)
	}
}

func TestConcurrentOrders(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))

	var wg sync.WaitGroup
	addOrder := func(id int, side Side, participant string) {
		defer wg.Done()
		_, _ = ob.Submit(&Order{
			ID:            fmt.Sprintf("C-%s-%d", side, id),
			ParticipantID: participant,
			Security:      "ABC",
			Side:          side,
			Price:         px("100"),
			Qty:           10,
		})
	}

	n := 1000
	for i := 0; i < n; i++ {
		wg.Add(2)
		go addOrder(i, BUY, "A")
		go addOrder(i, SELL, "B")
	}
	wg.Wait()

	q := ob.BestBidAsk()
	if q.HasBid && q.HasAsk {
		t.Fatalf("book left crossed: %+v", q)
	}
}

func BenchmarkOrderBookMatch(b *testing.B) {
	ob := newTestBook(richLedgers("ABC", "maker", "taker"))

	for i := 0; i < 10_000; i++ {
		_, _ = ob.Submit(&Order{
			ID:            fmt.Sprintf("SELL-%d", i),
			ParticipantID: "maker",
			Security:      "ABC",
			Side:          SELL,
			Price:         px("100").Add(px(fmt.Sprint(i % 5))),
			Qty:           10,
		})
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = ob.Submit(&Order{
			ID:            fmt.Sprintf("BUY-%d", i),
			ParticipantID: "taker",
			Security:      "ABC",
			Side:          BUY,
			Price:         px("101"),
			Qty:           10,
		})
	}
}
