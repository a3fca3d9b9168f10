// Package parity implements the put–call parity transformation that turns a
// portfolio of long stock proxies (futures, cash) and long options into a
// normalized risk view.
//
// The identity behind it: long stock + long put at strike K is economically
// equivalent to a long call at K. The engine pairs stock-like capacity against
// put lots ordered from highest strike to lowest (protection closest to the
// money converts first), emits synthetic call lots with their fair value, and
// classifies whatever could not be paired as residual risk.
//
// All quantities and values use shopspring/decimal — never float64 for money.
// One Transform call is a pure function of its input: it allocates a fresh
// ledger and log per invocation and returns immutable results, so the package
// is safe to call from concurrent hosts.
package parity

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// ErrNoUnderlyingPrice is returned when the input holds neither a futures nor
// a cash position, leaving no reference price for the stock leg.
var ErrNoUnderlyingPrice = errors.New("parity: no futures or cash position to price the stock leg")

// Result is the immutable outcome of one transformation run.
type Result struct {
	UnderlyingPrice  decimal.Decimal             `json:"underlying_price"`
	SyntheticCalls   []model.SyntheticCallLot    `json:"synthetic_calls"`
	Log              []model.TransformationStep  `json:"log"`
	Portfolio        []model.FinalPortfolioEntry `json:"portfolio"`
	RemainingFutures decimal.Decimal             `json:"remaining_futures"`
	RemainingCash    decimal.Decimal             `json:"remaining_cash"`
}

// UnderlyingPrice picks the reference price for the stock leg: the market
// price of the first futures row, else the first cash row, else an error.
// First-seen wins — no averaging across rows. This mirrors the behavior of
// the legacy transformer and keeps outputs comparable.
func UnderlyingPrice(positions []model.Position) (decimal.Decimal, error) {
	for _, p := range positions {
		if p.Kind == model.KindFutures {
			return p.MarketPrice, nil
		}
	}
	for _, p := range positions {
		if p.Kind == model.KindCash {
			return p.MarketPrice, nil
		}
	}
	return decimal.Zero, ErrNoUnderlyingPrice
}

// SyntheticCallValue computes the per-unit fair value of a synthetic call:
//
//	value = putPrice + (underlying − strike)
//
// Pure function, exact decimal arithmetic, no rounding.
func SyntheticCallValue(putPrice, underlying, strike decimal.Decimal) decimal.Decimal {
	return putPrice.Add(underlying.Sub(strike))
}

// putLot is one input put row with partial-consumption bookkeeping.
type putLot struct {
	strike    decimal.Decimal
	price     decimal.Decimal
	quantity  decimal.Decimal
	remaining decimal.Decimal
}

// putLots extracts put positions in allocation order: strictly descending
// strike, original row order within a strike. Puts without a strike are
// dropped here — they are never matched and never logged.
func putLots(positions []model.Position) []putLot {
	var lots []putLot
	for _, p := range positions {
		if p.Kind != model.KindPut || !p.Strike.Valid {
			continue
		}
		lots = append(lots, putLot{
			strike:    p.Strike.Decimal,
			price:     p.MarketPrice,
			quantity:  p.Quantity,
			remaining: p.Quantity,
		})
	}
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].strike.GreaterThan(lots[j].strike)
	})
	return lots
}

// Transform runs the full pipeline over one normalized position set:
// resolve the underlying price, allocate puts against the stock ledger,
// attribute residuals, and assemble the final portfolio.
//
// Allocation walks put lots highest strike first. For each lot it draws from
// the ledger (futures before cash) until the lot or the ledger is exhausted,
// emitting one synthetic call lot and one log step per draw. A lot left with
// unconsumed quantity gets a single UnmatchedPuts log step; the same per-lot
// residual later becomes its Unmatched Put portfolio row, so the log and the
// portfolio always agree on which lot was left over.
func Transform(positions []model.Position) (*Result, error) {
	underlying, err := UnderlyingPrice(positions)
	if err != nil {
		return nil, err
	}

	ledger := NewStockLedger(positions)
	lots := putLots(positions)

	var (
		calls []model.SyntheticCallLot
		log   []model.TransformationStep
	)

	for i := range lots {
		lot := &lots[i]

		for lot.remaining.IsPositive() && !ledger.Exhausted() {
			drawn, source := ledger.Draw(lot.remaining)
			if !drawn.IsPositive() {
				break
			}

			value := SyntheticCallValue(lot.price, underlying, lot.strike)
			calls = append(calls, model.SyntheticCallLot{
				Strike:       lot.strike,
				Quantity:     drawn,
				ValuePerUnit: value,
				TotalValue:   drawn.Mul(value),
				Source:       source,
				PutStrike:    lot.strike,
			})
			log = append(log, model.TransformationStep{
				Step:           len(log) + 1,
				Action:         model.ActionCreateSyntheticCall,
				Source:         string(source),
				Amount:         drawn,
				PutStrike:      lot.strike,
				PutPrice:       lot.price,
				SyntheticValue: decimal.NewNullDecimal(value),
			})

			lot.remaining = lot.remaining.Sub(drawn)
		}

		if lot.remaining.IsPositive() {
			log = append(log, model.TransformationStep{
				Step:      len(log) + 1,
				Action:    model.ActionUnmatchedPuts,
				Source:    "Puts",
				Amount:    lot.remaining,
				PutStrike: lot.strike,
				PutPrice:  lot.price,
				// SyntheticValue stays null: rendered as N/A.
			})
		}
	}

	res := &Result{
		UnderlyingPrice:  underlying,
		SyntheticCalls:   calls,
		Log:              log,
		RemainingFutures: ledger.RemainingFutures(),
		RemainingCash:    ledger.RemainingCash(),
	}
	res.Portfolio = assemble(positions, lots, calls, underlying, res.RemainingFutures, res.RemainingCash)
	return res, nil
}

// assemble produces the final portfolio rows in their fixed order:
// remaining futures, remaining cash, synthetic calls in creation order,
// original calls unchanged, unmatched puts. The two stock rows are the only
// ones suppressed when zero; nothing else is dropped.
func assemble(
	positions []model.Position,
	lots []putLot,
	calls []model.SyntheticCallLot,
	underlying, remainingFutures, remainingCash decimal.Decimal,
) []model.FinalPortfolioEntry {
	var entries []model.FinalPortfolioEntry

	if remainingFutures.IsPositive() {
		entries = append(entries, model.FinalPortfolioEntry{
			Type:         model.TypeFutures,
			Position:     remainingFutures,
			ValuePerUnit: underlying,
			TotalValue:   remainingFutures.Mul(underlying),
			RiskType:     model.RiskLongStock,
		})
	}
	if remainingCash.IsPositive() {
		entries = append(entries, model.FinalPortfolioEntry{
			Type:         model.TypeCash,
			Position:     remainingCash,
			ValuePerUnit: underlying,
			TotalValue:   remainingCash.Mul(underlying),
			RiskType:     model.RiskLongStock,
		})
	}

	for _, c := range calls {
		entries = append(entries, model.FinalPortfolioEntry{
			Type:         model.TypeSyntheticCall,
			Strike:       decimal.NewNullDecimal(c.Strike),
			Position:     c.Quantity,
			ValuePerUnit: c.ValuePerUnit,
			TotalValue:   c.TotalValue,
			RiskType:     model.RiskCallLike,
		})
	}

	for _, p := range positions {
		if p.Kind != model.KindCall {
			continue
		}
		entries = append(entries, model.FinalPortfolioEntry{
			Type:         model.TypeOriginalCall,
			Strike:       p.Strike,
			Position:     p.Quantity,
			ValuePerUnit: p.MarketPrice,
			TotalValue:   p.Quantity.Mul(p.MarketPrice),
			RiskType:     model.RiskCallLike,
		})
	}

	// Residuals come straight from the per-lot bookkeeping above, in the
	// same strike-descending order, so attribution matches the log.
	for _, lot := range lots {
		if !lot.remaining.IsPositive() {
			continue
		}
		entries = append(entries, model.FinalPortfolioEntry{
			Type:         model.TypeUnmatchedPut,
			Strike:       decimal.NewNullDecimal(lot.strike),
			Position:     lot.remaining,
			ValuePerUnit: lot.price,
			TotalValue:   lot.remaining.Mul(lot.price),
			RiskType:     model.RiskPutProtection,
		})
	}

	return entries
}
