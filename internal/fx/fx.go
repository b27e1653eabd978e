// Package fx resolves cross-rate conversions across a fleet of FX symbols
// and computes trade P/L in the account currency (spec §4.7). Money math
// uses shopspring/decimal so pip/profit figures never pick up float64
// rounding noise across a long backtest.
package fx

import (
	"fmt"

	"tradedb/internal/model"
	"tradedb/internal/xerrors"

	"github.com/shopspring/decimal"
)

// SymbolConfig is one fleet member's static configuration (spec §4.7).
type SymbolConfig struct {
	Symbol       string
	PrefixCount  int
	Point        *float64
	ContractSize *float64
}

// resolved is a SymbolConfig with its derived base/quote legs and defaults
// filled in.
type resolved struct {
	cfg          SymbolConfig
	base         string
	quote        string
	point        decimal.Decimal
	contractSize decimal.Decimal
}

const crossNone = -1

// Fleet resolves cross-rate conversion paths for a set of FX symbols quoted
// against a single account currency (spec §4.7 "Cross-rate resolution").
type Fleet struct {
	AccountCurrency string
	Leverage        float64

	symbols []resolved
	index   map[string]int

	// crossIndex[j] is the fleet index whose bid/ask converts symbol j's
	// quote currency into AccountCurrency, or crossNone.
	crossIndex []int
	// crossIsDirect[j] is true when crossIndex[j] multiplies by bid,
	// false when it divides by ask (spec §4.7 "direct" vs "inverse").
	crossIsDirect []bool
}

// NewFleet derives base/quote legs, defaults, and resolves the cross-rate
// index for every symbol (spec §4.7 "Derivation", "Cross-rate resolution").
func NewFleet(accountCurrency string, leverage float64, configs []SymbolConfig) (*Fleet, error) {
	if accountCurrency == "" {
		return nil, fmt.Errorf("fx: NewFleet: %w: empty account currency", xerrors.ErrInvalidConfig)
	}

	f := &Fleet{
		AccountCurrency: accountCurrency,
		Leverage:        leverage,
		index:           make(map[string]int, len(configs)),
	}

	for i, c := range configs {
		if len(c.Symbol) < c.PrefixCount+6 {
			return nil, fmt.Errorf("fx: NewFleet: %w: symbol %q too short for prefix_count %d", xerrors.ErrInvalidConfig, c.Symbol, c.PrefixCount)
		}
		base := c.Symbol[c.PrefixCount : c.PrefixCount+3]
		quote := c.Symbol[c.PrefixCount+3 : c.PrefixCount+6]

		point := 0.00001
		if base == "JPY" || quote == "JPY" {
			point = 0.001
		}
		if c.Point != nil {
			point = *c.Point
		}

		contractSize := 100000.0
		if c.ContractSize != nil {
			contractSize = *c.ContractSize
		}

		f.symbols = append(f.symbols, resolved{
			cfg:          c,
			base:         base,
			quote:        quote,
			point:        decimal.NewFromFloat(point),
			contractSize: decimal.NewFromFloat(contractSize),
		})
		f.index[c.Symbol] = i
	}

	f.crossIndex = make([]int, len(f.symbols))
	f.crossIsDirect = make([]bool, len(f.symbols))
	for j := range f.symbols {
		f.crossIndex[j] = crossNone
		if f.symbols[j].quote == accountCurrency {
			continue
		}
		for i := range f.symbols {
			if i == j {
				continue
			}
			if f.symbols[i].quote == accountCurrency && f.symbols[i].base == f.symbols[j].quote {
				f.crossIndex[j] = i
				f.crossIsDirect[j] = true
				break
			}
			if f.symbols[i].base == accountCurrency && f.symbols[i].quote == f.symbols[j].quote {
				f.crossIndex[j] = i
				f.crossIsDirect[j] = false
				break
			}
		}
	}

	return f, nil
}

func (f *Fleet) find(symbol string) (int, bool) {
	i, ok := f.index[symbol]
	return i, ok
}

// Direction is a trade's side.
type Direction bool

const (
	Sell Direction = false
	Buy  Direction = true
)

// Trade is the input to a P/L calculation (spec §4.7 "Trade P/L").
type Trade struct {
	Symbol       string
	Lot          float64
	OpenTMs      uint64
	CloseTMs     *uint64
	OpenDelayMs  uint64
	CloseDelayMs uint64
	DurationMs   uint64
	Direction    Direction
}

// TickAt looks up the point tick nearest-at-or-before t_ms for a symbol;
// supplied by the caller (the symbol engine owns the actual price buffer).
type TickAt func(symbol string, tMs uint64) (model.Tick, bool)

// Result is a computed trade outcome.
type Result struct {
	OpenPrice  float64
	ClosePrice float64
	Profit     float64
	Pips       float64
	Win        bool
}

// CalculateTradePL implements spec §4.7 "Trade P/L" steps 1-6.
func (f *Fleet) CalculateTradePL(trade Trade, tickAt TickAt) (Result, bool) {
	idx, ok := f.find(trade.Symbol)
	if !ok {
		return Result{}, false
	}
	sym := f.symbols[idx]

	openAt := trade.OpenTMs + trade.OpenDelayMs
	var closeBase uint64
	if trade.CloseTMs != nil {
		closeBase = *trade.CloseTMs
	} else {
		closeBase = trade.OpenTMs + trade.DurationMs
	}
	closeAt := closeBase + trade.CloseDelayMs
	if closeAt < openAt {
		return Result{}, false
	}

	openTick, ok := tickAt(trade.Symbol, openAt)
	if !ok {
		return Result{}, false
	}
	closeTick, ok := tickAt(trade.Symbol, closeAt)
	if !ok {
		return Result{}, false
	}

	var openPrice, closePrice float64
	if trade.Direction == Buy {
		openPrice = openTick.Ask
		closePrice = closeTick.Bid
	} else {
		openPrice = openTick.Bid
		closePrice = closeTick.Ask
	}

	lot := decimal.NewFromFloat(trade.Lot)
	leverage := decimal.NewFromFloat(f.Leverage)
	op := decimal.NewFromFloat(openPrice)
	cp := decimal.NewFromFloat(closePrice)

	var priceDiff decimal.Decimal
	if trade.Direction == Buy {
		priceDiff = cp.Sub(op)
	} else {
		priceDiff = op.Sub(cp)
	}
	raw := lot.Mul(sym.contractSize).Mul(leverage).Mul(priceDiff)

	var profit decimal.Decimal
	switch {
	case sym.quote == f.AccountCurrency:
		profit = raw
	case f.crossIndex[idx] != crossNone:
		crossTick, ok := tickAt(f.symbols[f.crossIndex[idx]].cfg.Symbol, closeAt)
		if !ok {
			return Result{}, false
		}
		if f.crossIsDirect[idx] {
			profit = raw.Mul(decimal.NewFromFloat(crossTick.Bid))
		} else {
			ask := decimal.NewFromFloat(crossTick.Ask)
			if ask.IsZero() {
				return Result{}, false
			}
			profit = raw.Div(ask)
		}
	default:
		return Result{}, false
	}

	pips := priceDiff.Div(sym.point)

	profitF, _ := profit.Float64()
	pipsF, _ := pips.Float64()

	return Result{
		OpenPrice:  openPrice,
		ClosePrice: closePrice,
		Profit:     profitF,
		Pips:       pipsF,
		Win:        profitF > 0,
	}, true
}
