package position

import (
	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// SamplePositions returns the demo book used by the /sample endpoint and the
// test suite: futures and cash against a five-strike put ladder plus three
// outright calls.
func SamplePositions() []model.Position {
	stock := func(kind model.InstrumentKind, qty, price int64) model.Position {
		return model.Position{
			Kind:        kind,
			Quantity:    decimal.NewFromInt(qty),
			MarketPrice: decimal.NewFromInt(price),
		}
	}
	option := func(kind model.InstrumentKind, qty, strike, price int64) model.Position {
		return model.Position{
			Kind:        kind,
			Quantity:    decimal.NewFromInt(qty),
			Strike:      decimal.NewNullDecimal(decimal.NewFromInt(strike)),
			MarketPrice: decimal.NewFromInt(price),
		}
	}

	return []model.Position{
		stock(model.KindFutures, 100000, 1191),
		stock(model.KindCash, 200000, 1190),
		option(model.KindPut, 5000, 1240, 60),
		option(model.KindPut, 10000, 1230, 65),
		option(model.KindPut, 100000, 1200, 25),
		option(model.KindPut, 100000, 1150, 8),
		option(model.KindPut, 100000, 1100, 4),
		option(model.KindCall, 100000, 1200, 12),
		option(model.KindCall, 11000, 1250, 4),
		option(model.KindCall, 11000, 1150, 62),
	}
}
