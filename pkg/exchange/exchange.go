package exchange

import (
	"context"
	"fmt"
	"sort"

	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Security struct {
	Symbol         string
	ReferencePrice decimal.Decimal
}

// UpdateSink receives every book update. Offer is called with the book
// locked, so it must not block.
type UpdateSink interface {
	Offer(update orderbook.BookUpdate)
}

type OrderRequest struct {
	ParticipantID string
	Security      string
	Side          orderbook.Side
	Price         decimal.Decimal
	Qty           int64
}

// OrderHandle reports what happened to an admitted order by the time
// SubmitOrder returned.
type OrderHandle struct {
	OrderID   string
	Sequence  uint64
	Security  string
	Side      orderbook.Side
	Price     decimal.Decimal
	Qty       int64
	Filled    int64
	Remaining int64
	Resting   bool
	Trades    []*orderbook.MatchResult
}

type Option func(*Exchange)

func WithLogger(l *logging.Logger) Option {
	return func(e *Exchange) { e.logger = l }
}

func WithRules(rules ...AdmissionRule) Option {
	return func(e *Exchange) { e.rules = append(e.rules, rules...) }
}

func WithUpdateSink(sink UpdateSink) Option {
	return func(e *Exchange) { e.sinks = append(e.sinks, sink) }
}

func WithSequencer(seq *Sequencer) Option {
	return func(e *Exchange) { e.seq = seq }
}

// Exchange routes orders to one OrderBook per security. The set of
// securities is fixed at construction, so the books map is read-only.
type Exchange struct {
	books   map[string]*orderbook.OrderBook
	symbols []string
	ledgers orderbook.LedgerProvider
	rules   []AdmissionRule
	sinks   []UpdateSink
	seq     *Sequencer
	logger  *logging.Logger
}

func New(securities []Security, ledgers orderbook.LedgerProvider, opts ...Option) (*Exchange, error) {
	e := &Exchange{
		books:   make(map[string]*orderbook.OrderBook, len(securities)),
		ledgers: ledgers,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seq == nil {
		e.seq = NewSequencer(0)
	}

	for _, sec := range securities {
		if sec.Symbol == "" {
			return nil, fmt.Errorf("%w: empty symbol", ErrInvalidSecurity)
		}
		if !sec.ReferencePrice.IsPositive() {
			return nil, fmt.Errorf("%w: %s reference price %s", ErrInvalidSecurity, sec.Symbol, sec.ReferencePrice)
		}
		if _, dup := e.books[sec.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidSecurity, sec.Symbol)
		}

		book := orderbook.NewOrderBook(orderbook.OrderBookConfig{
			Security:       sec.Symbol,
			ReferencePrice: sec.ReferencePrice,
			Ledgers:        ledgers,
			NextSequence:   e.seq.Next,
		})
		for _, sink := range e.sinks {
			book.RegisterUpdateCallback(sink.Offer)
		}
		e.books[sec.Symbol] = book
		e.symbols = append(e.symbols, sec.Symbol)
	}
	sort.Strings(e.symbols)

	return e, nil
}

// SubmitOrder admits the request and matches it before returning.
// Rejections leave every book and ledger untouched.
func (e *Exchange) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderHandle, error) {
	ctx = logging.WithParticipantID(ctx, req.ParticipantID)

	book, err := e.book(req.Security)
	if err != nil {
		return nil, err
	}

	order := &orderbook.Order{
		ParticipantID: req.ParticipantID,
		Security:      req.Security,
		Side:          req.Side,
		Price:         req.Price,
		Qty:           req.Qty,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	lastPrice := book.LastPrice()
	for _, rule := range e.rules {
		if err := rule.Check(order, lastPrice); err != nil {
			return nil, err
		}
	}

	if e.ledgers == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, req.ParticipantID)
	}
	ledger, err := e.ledgers.Ledger(req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if !ledger.CanAfford(order.Side, order.Security, order.Price, order.Qty) {
		if order.Side == orderbook.BUY {
			return nil, fmt.Errorf("%w: %s buy %d@%s", ErrInsufficientFunds, req.ParticipantID, order.Qty, order.Price)
		}
		return nil, fmt.Errorf("%w: %s sell %d %s", ErrInsufficientPosition, req.ParticipantID, order.Qty, order.Security)
	}

	res, err := book.Submit(order)
	if err != nil {
		return nil, err
	}
	e.report(ctx, res)

	return &OrderHandle{
		OrderID:   res.OrderID,
		Sequence:  res.Sequence,
		Security:  req.Security,
		Side:      req.Side,
		Price:     req.Price,
		Qty:       req.Qty,
		Filled:    res.FilledQty(),
		Remaining: res.Remaining,
		Resting:   res.Resting,
		Trades:    res.Trades,
	}, nil
}

// report surfaces settlement failures and self-trade skips against the
// participant who owned the affected order.
func (e *Exchange) report(ctx context.Context, res *orderbook.SubmitResult) {
	for _, t := range res.Trades {
		e.logger.Debug(ctx, "trade executed",
			zap.String("security", t.Security),
			zap.String("buyer", t.BuyerID),
			zap.String("seller", t.SellerID),
			zap.String("price", t.Price.String()),
			zap.Int64("qty", t.Qty),
		)
	}
	for _, removed := range res.Removed {
		e.logger.Warn(logging.WithParticipantID(ctx, removed.Order.ParticipantID), "order removed on failed settlement",
			zap.String("order_id", removed.Order.ID),
			zap.String("security", removed.Order.Security),
			zap.String("side", string(removed.Order.Side)),
			zap.Int64("qty", removed.Order.Qty),
			zap.Error(removed.Reason),
		)
	}
	for _, skip := range res.SelfTradeSkips {
		e.logger.Info(logging.WithParticipantID(ctx, skip.ParticipantID), "self trade skipped",
			zap.String("bid_order_id", skip.BidOrderID),
			zap.String("ask_order_id", skip.AskOrderID),
		)
	}
}

func (e *Exchange) book(security string) (*orderbook.OrderBook, error) {
	book, ok := e.books[security]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSecurity, security)
	}
	return book, nil
}

// Book exposes the underlying book, e.g. for resting order inspection.
func (e *Exchange) Book(security string) (*orderbook.OrderBook, error) {
	return e.book(security)
}

func (e *Exchange) BestBidAsk(security string) (orderbook.Quote, error) {
	book, err := e.book(security)
	if err != nil {
		return orderbook.Quote{}, err
	}
	return book.BestBidAsk(), nil
}

func (e *Exchange) LastPrice(security string) (decimal.Decimal, error) {
	book, err := e.book(security)
	if err != nil {
		return decimal.Zero, err
	}
	return book.LastPrice(), nil
}

func (e *Exchange) Depth(security string, levels int) (bids, asks []orderbook.PriceLevel, err error) {
	book, err := e.book(security)
	if err != nil {
		return nil, nil, err
	}
	bids, asks = book.Depth(levels)
	return bids, asks, nil
}

// Securities lists the tradable symbols in lexical order.
func (e *Exchange) Securities() []string {
	return append([]string(nil), e.symbols...)
}

// LastSequence is the highest admission sequence issued so far.
func (e *Exchange) LastSequence() uint64 {
	return e.seq.Current()
}
