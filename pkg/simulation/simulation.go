// Package simulation drives a trading session: synthetic traders act at
// random on random securities for a simulated number of seconds.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/joripage/exchange-sim/pkg/exchange"
	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/joripage/exchange-sim/pkg/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stats counts what happened during a run.
type Stats struct {
	Submitted int
	Rejected  int
	Trades    int
	Volume    int64
	Transfers int
}

type Simulation struct {
	cfg        Config
	ex         *exchange.Exchange
	traders    []*Trader
	securities []string
	rng        *rand.Rand
	logger     *logging.Logger
	sessionID  string

	stats Stats
}

type Option func(*Simulation)

func WithLogger(l *logging.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

func WithSessionID(id string) Option {
	return func(s *Simulation) { s.sessionID = id }
}

// NewRand seeds from cfg.Seed, or from the clock when it is zero.
func NewRand(cfg Config) *rand.Rand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func New(cfg Config, ex *exchange.Exchange, traders []*Trader, rng *rand.Rand, opts ...Option) (*Simulation, error) {
	cfg = cfg.WithDefaults()
	if _, _, err := cfg.validate(); err != nil {
		return nil, err
	}
	securities := ex.Securities()
	if len(securities) == 0 {
		return nil, ErrNoSecurities
	}

	s := &Simulation{
		cfg:        cfg,
		ex:         ex,
		traders:    traders,
		securities: securities,
		rng:        rng,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessionID == "" {
		s.sessionID = logging.NewSessionID()
	}
	return s, nil
}

// NewTraders creates cfg.Traders fresh accounts with random balances and
// positions, registers them and gives each its own RandomStrategy.
func NewTraders(cfg Config, securities []string, reg *ledger.Registry, rng *rand.Rand) ([]*Trader, error) {
	cfg = cfg.WithDefaults()
	tick, minBank, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	traders := make([]*Trader, 0, cfg.Traders)
	for i := 0; i < cfg.Traders; i++ {
		positions := make(map[string]int64, len(securities))
		for _, sec := range securities {
			positions[sec] = randBetween(rng, cfg.InitialPosition)
		}
		acc := ledger.NewAccount(
			fmt.Sprintf("Trader_%d", i+1),
			decimal.NewFromInt(randBetween(rng, cfg.BankBalance)),
			decimal.NewFromInt(randBetween(rng, cfg.InitialCash)),
			positions,
		)
		if err := reg.Register(acc); err != nil {
			return nil, err
		}
		strategy := NewRandomStrategy(rand.New(rand.NewSource(rng.Int63())), cfg.OrderQty, tick)
		traders = append(traders, NewTrader(acc, strategy, minBank))
	}
	return traders, nil
}

// TradersFromSnapshots rebuilds traders saved by an earlier session.
func TradersFromSnapshots(cfg Config, snaps []ledger.Snapshot, reg *ledger.Registry, rng *rand.Rand) ([]*Trader, error) {
	cfg = cfg.WithDefaults()
	tick, minBank, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	traders := make([]*Trader, 0, len(snaps))
	for _, snap := range snaps {
		acc := ledger.Restore(snap)
		if err := reg.Register(acc); err != nil {
			return nil, err
		}
		strategy := NewRandomStrategy(rand.New(rand.NewSource(rng.Int63())), cfg.OrderQty, tick)
		traders = append(traders, NewTrader(acc, strategy, minBank))
	}
	return traders, nil
}

func randBetween(rng *rand.Rand, r Range) int64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Int63n(r.Max-r.Min+1)
}

// Run plays the session one simulated second at a time. It stops early
// when at most one trader is still active or ctx is cancelled; the report
// is returned in every case.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	ctx = logging.WithSessionID(ctx, s.sessionID)
	total := s.cfg.TradingSeconds()
	s.logger.Info(ctx, "simulation started",
		zap.Int("traders", len(s.traders)),
		zap.Strings("securities", s.securities),
		zap.Int("seconds", total),
	)

	var err error
	second := 0
	for ; second < total; second++ {
		if err = ctx.Err(); err != nil {
			break
		}

		active := s.activeTraders()
		if len(active) <= 1 {
			s.logger.Info(ctx, "not enough active traders, closing early", zap.Int("second", second), zap.Int("active", len(active)))
			break
		}

		for _, t := range active {
			if s.rng.Float64() >= s.cfg.ActProbability {
				continue
			}
			security := s.securities[s.rng.Intn(len(s.securities))]
			s.act(ctx, t, security)
		}
	}

	report := s.report(second)
	s.logger.Info(ctx, "simulation finished",
		zap.Int("seconds", second),
		zap.Int("submitted", s.stats.Submitted),
		zap.Int("trades", s.stats.Trades),
	)
	return report, err
}

func (s *Simulation) activeTraders() []*Trader {
	active := make([]*Trader, 0, len(s.traders))
	for _, t := range s.traders {
		if t.Active() {
			active = append(active, t)
		}
	}
	return active
}

func (s *Simulation) snapshot(security string) (Snapshot, error) {
	quote, err := s.ex.BestBidAsk(security)
	if err != nil {
		return Snapshot{}, err
	}
	last, err := s.ex.LastPrice(security)
	if err != nil {
		return Snapshot{}, err
	}
	bids, asks, err := s.ex.Depth(security, s.cfg.DepthLevels)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Security: security, Quote: quote, LastPrice: last, Bids: bids, Asks: asks}, nil
}

func (s *Simulation) act(ctx context.Context, t *Trader, security string) {
	ctx = logging.WithParticipantID(ctx, t.ID)

	snap, err := s.snapshot(security)
	if err != nil {
		s.logger.Error(ctx, "snapshot failed", zap.String("security", security), zap.Error(err))
		return
	}
	intent, ok := t.Strategy.Decide(snap)
	if !ok {
		return
	}

	s.stats.Submitted++
	handle, err := s.ex.SubmitOrder(ctx, exchange.OrderRequest{
		ParticipantID: t.ID,
		Security:      security,
		Side:          intent.Side,
		Price:         intent.Price,
		Qty:           intent.Qty,
	})
	if err != nil {
		s.stats.Rejected++
		s.logger.Debug(ctx, "order rejected", zap.String("security", security), zap.Error(err))
		if errors.Is(err, exchange.ErrInsufficientFunds) && s.cfg.AutoTransfer {
			s.topUp(ctx, t, intent)
		}
		return
	}

	s.stats.Trades += len(handle.Trades)
	for _, tr := range handle.Trades {
		s.stats.Volume += tr.Qty
	}
}

// topUp moves the shortfall of a rejected buy from the bank into trading cash.
func (s *Simulation) topUp(ctx context.Context, t *Trader, intent OrderIntent) {
	need := intent.Price.Mul(decimal.NewFromInt(intent.Qty)).Sub(t.Account.Cash())
	if !need.IsPositive() {
		return
	}
	if t.Account.RequestCashTransfer(need) {
		s.stats.Transfers++
		s.logger.Debug(ctx, "cash transferred from bank", zap.String("amount", need.String()))
		return
	}
	s.logger.Debug(ctx, "bank balance too low for transfer", zap.String("amount", need.String()))
}
