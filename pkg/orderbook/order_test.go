package orderbook

import (
	"errors"
	"testing"
)

func TestOrderValidate(t *testing.T) {
	cases := []struct {
		name  string
		order Order
		ok    bool
	}{
		{"valid", Order{Side: BUY, Price: px("1"), Qty: 1}, true},
		{"bad side", Order{Side: "HOLD", Price: px("1"), Qty: 1}, false},
		{"zero price", Order{Side: SELL, Price: px("0"), Qty: 1}, false},
		{"negative qty", Order{Side: SELL, Price: px("1"), Qty: -5}, false},
	}
	for _, tc := range cases {
		err := tc.order.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("%s: expected ErrInvalidOrder, got %v", tc.name, err)
		}
	}
}

func TestRestingOrdersFollowPriority(t *testing.T) {
	ob := newTestBook(richLedgers("ABC", "A", "B"))
	for _, o := range []*Order{
		{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("9"), Qty: 1},
		{ParticipantID: "B", Security: "ABC", Side: BUY, Price: px("10"), Qty: 1},
		{ParticipantID: "A", Security: "ABC", Side: BUY, Price: px("9.00"), Qty: 1},
		{ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("12"), Qty: 1},
		{ParticipantID: "A", Security: "ABC", Side: SELL, Price: px("11"), Qty: 1},
		{ParticipantID: "B", Security: "ABC", Side: SELL, Price: px("11.0"), Qty: 1},
	} {
		if _, err := ob.Submit(o); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	for _, side := range []Side{BUY, SELL} {
		orders := ob.RestingOrders(side)
		if len(orders) != 3 {
			t.Fatalf("%s: expected 3 resting orders, got %d", side, len(orders))
		}
		for i := 1; i < len(orders); i++ {
			if !orders[i-1].hasPriorityOver(&orders[i]) {
				t.Errorf("%s: order %d (%s seq %d) listed ahead of higher priority order (%s seq %d)",
					side, i-1, orders[i-1].Price, orders[i-1].Sequence, orders[i].Price, orders[i].Sequence)
			}
		}
	}

	bids, asks := ob.Depth(0)
	if len(bids) != 2 || bids[1].Orders != 2 || len(asks) != 2 || asks[0].Qty != 2 {
		t.Errorf("equal prices with different scale must share a level: bids=%+v asks=%+v", bids, asks)
	}
}
