package parity

import (
	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// StockLedger tracks the consumable long-stock quantity for one run,
// split into its two ordered sources. Futures capacity is always drained
// before cash capacity. Created fresh per run; Draw is the only mutator
// and balances never increase.
type StockLedger struct {
	futures decimal.Decimal
	cash    decimal.Decimal
}

// NewStockLedger sums the Futures and Cash quantities of the input set.
func NewStockLedger(positions []model.Position) *StockLedger {
	l := &StockLedger{}
	for _, p := range positions {
		switch p.Kind {
		case model.KindFutures:
			l.futures = l.futures.Add(p.Quantity)
		case model.KindCash:
			l.cash = l.cash.Add(p.Quantity)
		}
	}
	return l
}

// Draw consumes up to requested units, futures first, then cash.
// Returns the amount actually drawn and its source. A single draw never
// spans both sources; callers loop until drawn is zero or they are
// satisfied. Returns (0, SourceNone) when both sides are exhausted.
func (l *StockLedger) Draw(requested decimal.Decimal) (decimal.Decimal, model.Source) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, model.SourceNone
	}
	if l.futures.IsPositive() {
		drawn := decimal.Min(requested, l.futures)
		l.futures = l.futures.Sub(drawn)
		return drawn, model.SourceFutures
	}
	if l.cash.IsPositive() {
		drawn := decimal.Min(requested, l.cash)
		l.cash = l.cash.Sub(drawn)
		return drawn, model.SourceCash
	}
	return decimal.Zero, model.SourceNone
}

// RemainingFutures returns the undrawn futures quantity.
func (l *StockLedger) RemainingFutures() decimal.Decimal { return l.futures }

// RemainingCash returns the undrawn cash quantity.
func (l *StockLedger) RemainingCash() decimal.Decimal { return l.cash }

// Exhausted reports whether no capacity remains on either side.
func (l *StockLedger) Exhausted() bool {
	return !l.futures.IsPositive() && !l.cash.IsPositive()
}
