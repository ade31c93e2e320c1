package simulation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

type Range struct {
	Min int64 `yaml:"min"`
	Max int64 `yaml:"max"`
}

type Config struct {
	Seed           int64   `yaml:"seed"`
	Traders        int     `yaml:"traders"`
	TradingHours   float64 `yaml:"trading_hours"`
	ActProbability float64 `yaml:"act_probability"`
	OrderQty       int64   `yaml:"order_qty"`
	PriceTick      string  `yaml:"price_tick"`
	MinBankBalance string  `yaml:"min_bank_balance"`
	AutoTransfer   bool    `yaml:"auto_transfer"`
	DepthLevels    int     `yaml:"depth_levels"`

	BankBalance     Range `yaml:"bank_balance"`
	InitialCash     Range `yaml:"initial_cash"`
	InitialPosition Range `yaml:"initial_position"`
}

func DefaultConfig() Config {
	return Config{
		Traders:         5,
		TradingHours:    6.5,
		ActProbability:  0.5,
		OrderQty:        1000,
		PriceTick:       "0.01",
		MinBankBalance:  "1000",
		AutoTransfer:    true,
		DepthLevels:     5,
		BankBalance:     Range{Min: 50_000, Max: 100_000},
		InitialCash:     Range{Min: 5_000, Max: 20_000},
		InitialPosition: Range{Min: 1_000, Max: 10_000},
	}
}

// WithDefaults fills every zero field from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Traders == 0 {
		c.Traders = def.Traders
	}
	if c.TradingHours == 0 {
		c.TradingHours = def.TradingHours
	}
	if c.ActProbability == 0 {
		c.ActProbability = def.ActProbability
	}
	if c.OrderQty == 0 {
		c.OrderQty = def.OrderQty
	}
	if c.PriceTick == "" {
		c.PriceTick = def.PriceTick
	}
	if c.MinBankBalance == "" {
		c.MinBankBalance = def.MinBankBalance
	}
	if c.DepthLevels == 0 {
		c.DepthLevels = def.DepthLevels
	}
	if c.BankBalance == (Range{}) {
		c.BankBalance = def.BankBalance
	}
	if c.InitialCash == (Range{}) {
		c.InitialCash = def.InitialCash
	}
	if c.InitialPosition == (Range{}) {
		c.InitialPosition = def.InitialPosition
	}
	return c
}

func (c Config) TradingSeconds() int {
	return int(math.Round(c.TradingHours * 3600))
}

func (c Config) validate() (tick, minBank decimal.Decimal, err error) {
	if c.Traders < 1 {
		return tick, minBank, fmt.Errorf("%w: traders %d", ErrInvalidConfig, c.Traders)
	}
	if c.ActProbability < 0 || c.ActProbability > 1 {
		return tick, minBank, fmt.Errorf("%w: act_probability %v", ErrInvalidConfig, c.ActProbability)
	}
	if c.OrderQty <= 0 {
		return tick, minBank, fmt.Errorf("%w: order_qty %d", ErrInvalidConfig, c.OrderQty)
	}
	for name, r := range map[string]Range{"bank_balance": c.BankBalance, "initial_cash": c.InitialCash, "initial_position": c.InitialPosition} {
		if r.Min < 0 || r.Max < r.Min {
			return tick, minBank, fmt.Errorf("%w: %s range [%d, %d]", ErrInvalidConfig, name, r.Min, r.Max)
		}
	}
	if tick, err = decimal.NewFromString(c.PriceTick); err != nil || !tick.IsPositive() {
		return tick, minBank, fmt.Errorf("%w: price_tick %q", ErrInvalidConfig, c.PriceTick)
	}
	if minBank, err = decimal.NewFromString(c.MinBankBalance); err != nil {
		return tick, minBank, fmt.Errorf("%w: min_bank_balance %q", ErrInvalidConfig, c.MinBankBalance)
	}
	return tick, minBank, nil
}
