package simulation

import (
	"context"

	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SecurityReport struct {
	Security  string
	Quote     orderbook.Quote
	LastPrice decimal.Decimal
}

type TraderReport struct {
	ID        string
	Active    bool
	TotalCash decimal.Decimal
	Account   ledger.Snapshot
}

type Report struct {
	SessionID  string
	Seconds    int
	Stats      Stats
	Securities []SecurityReport
	Traders    []TraderReport
}

func (s *Simulation) report(seconds int) *Report {
	r := &Report{
		SessionID: s.sessionID,
		Seconds:   seconds,
		Stats:     s.stats,
	}
	for _, sec := range s.securities {
		quote, _ := s.ex.BestBidAsk(sec)
		last, _ := s.ex.LastPrice(sec)
		r.Securities = append(r.Securities, SecurityReport{Security: sec, Quote: quote, LastPrice: last})
	}
	for _, t := range s.traders {
		snap := t.Account.Snapshot()
		r.Traders = append(r.Traders, TraderReport{
			ID:        t.ID,
			Active:    t.active,
			TotalCash: snap.TotalCash(),
			Account:   snap,
		})
	}
	return r
}

// Snapshots returns every trader's account, ready to be persisted.
func (r *Report) Snapshots() []ledger.Snapshot {
	out := make([]ledger.Snapshot, 0, len(r.Traders))
	for _, t := range r.Traders {
		out = append(out, t.Account)
	}
	return out
}

func quoteField(key string, price decimal.Decimal, ok bool) zap.Field {
	if !ok {
		return zap.String(key, "none")
	}
	return zap.String(key, price.String())
}

// Log writes the end-of-session summary: one line per security, then one
// per trader.
func (r *Report) Log(ctx context.Context, logger *logging.Logger) {
	ctx = logging.WithSessionID(ctx, r.SessionID)
	for _, sec := range r.Securities {
		logger.Info(ctx, "final prices",
			zap.String("security", sec.Security),
			quoteField("best_bid", sec.Quote.Bid, sec.Quote.HasBid),
			quoteField("best_ask", sec.Quote.Ask, sec.Quote.HasAsk),
			zap.String("last_price", sec.LastPrice.String()),
		)
	}
	for _, t := range r.Traders {
		logger.Info(logging.WithParticipantID(ctx, t.ID), "final account",
			zap.Bool("active", t.Active),
			zap.String("total_cash", t.TotalCash.String()),
			zap.Any("portfolio", t.Account.Positions),
		)
	}
}
