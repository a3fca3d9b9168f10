package parity

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func fut(qty, price float64) model.Position {
	return model.Position{Kind: model.KindFutures, Quantity: d(qty), MarketPrice: d(price)}
}

func cash(qty, price float64) model.Position {
	return model.Position{Kind: model.KindCash, Quantity: d(qty), MarketPrice: d(price)}
}

func put(qty, strike, price float64) model.Position {
	return model.Position{
		Kind: model.KindPut, Quantity: d(qty),
		Strike: decimal.NewNullDecimal(d(strike)), MarketPrice: d(price),
	}
}

func call(qty, strike, price float64) model.Position {
	return model.Position{
		Kind: model.KindCall, Quantity: d(qty),
		Strike: decimal.NewNullDecimal(d(strike)), MarketPrice: d(price),
	}
}

// samplePositions is the demo book: 100k futures and 200k cash against a
// put ladder from 1240 down to 1100, plus three outright calls.
func samplePositions() []model.Position {
	return []model.Position{
		fut(100000, 1191),
		cash(200000, 1190),
		put(5000, 1240, 60),
		put(10000, 1230, 65),
		put(100000, 1200, 25),
		put(100000, 1150, 8),
		put(100000, 1100, 4),
		call(100000, 1200, 12),
		call(11000, 1250, 4),
		call(11000, 1150, 62),
	}
}

// --- Underlying price resolution ---

func TestUnderlyingPrice_FuturesWins(t *testing.T) {
	price, err := UnderlyingPrice([]model.Position{cash(100, 1190), fut(100, 1191)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(d(1191)) {
		t.Errorf("expected futures price 1191, got %s", price)
	}
}

func TestUnderlyingPrice_CashFallback(t *testing.T) {
	price, err := UnderlyingPrice([]model.Position{put(10, 1200, 25), cash(100, 1190)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(d(1190)) {
		t.Errorf("expected cash price 1190, got %s", price)
	}
}

func TestUnderlyingPrice_FirstSeenWins(t *testing.T) {
	// Two futures rows at different prices: the first row's price is used,
	// never an average.
	price, err := UnderlyingPrice([]model.Position{fut(100, 1191), fut(100, 1300)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(d(1191)) {
		t.Errorf("expected first-seen price 1191, got %s", price)
	}
}

func TestUnderlyingPrice_Missing(t *testing.T) {
	_, err := UnderlyingPrice([]model.Position{put(10, 1200, 25), call(10, 1250, 4)})
	if err != ErrNoUnderlyingPrice {
		t.Errorf("expected ErrNoUnderlyingPrice, got %v", err)
	}
}

func TestUnderlyingPrice_Idempotent(t *testing.T) {
	positions := samplePositions()
	first, err1 := UnderlyingPrice(positions)
	second, err2 := UnderlyingPrice(positions)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if !first.Equal(second) {
		t.Errorf("resolver not idempotent: %s vs %s", first, second)
	}
}

// --- Valuation ---

func TestSyntheticCallValue(t *testing.T) {
	tests := []struct {
		putPrice, underlying, strike, want float64
	}{
		{60, 1191, 1240, 11},
		{65, 1191, 1230, 26},
		{25, 1191, 1200, 16},
		{8, 1191, 1150, 49},
		{4, 1191, 1100, 95},
		{0.5, 100, 105, -4.5}, // deep out of the money put leg
	}
	for _, tt := range tests {
		got := SyntheticCallValue(d(tt.putPrice), d(tt.underlying), d(tt.strike))
		if !got.Equal(d(tt.want)) {
			t.Errorf("value(%v, %v, %v) = %s, want %v",
				tt.putPrice, tt.underlying, tt.strike, got, tt.want)
		}
	}
}

// --- Full transformation: sample scenario ---

func TestTransform_SampleScenario(t *testing.T) {
	res, err := Transform(samplePositions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.UnderlyingPrice.Equal(d(1191)) {
		t.Errorf("expected underlying 1191, got %s", res.UnderlyingPrice)
	}

	wantSteps := []struct {
		action string
		source string
		amount float64
		strike float64
		value  float64 // ignored for unmatched steps
	}{
		{model.ActionCreateSyntheticCall, "Futures", 5000, 1240, 11},
		{model.ActionCreateSyntheticCall, "Futures", 10000, 1230, 26},
		{model.ActionCreateSyntheticCall, "Futures", 85000, 1200, 16},
		{model.ActionCreateSyntheticCall, "Cash", 15000, 1200, 16},
		{model.ActionCreateSyntheticCall, "Cash", 100000, 1150, 49},
		{model.ActionCreateSyntheticCall, "Cash", 85000, 1100, 95},
		{model.ActionUnmatchedPuts, "Puts", 15000, 1100, 0},
	}
	if len(res.Log) != len(wantSteps) {
		t.Fatalf("expected %d steps, got %d", len(wantSteps), len(res.Log))
	}
	for i, want := range wantSteps {
		got := res.Log[i]
		if got.Step != i+1 {
			t.Errorf("step %d: index %d, want %d", i, got.Step, i+1)
		}
		if got.Action != want.action || got.Source != want.source {
			t.Errorf("step %d: got %s/%s, want %s/%s",
				i, got.Action, got.Source, want.action, want.source)
		}
		if !got.Amount.Equal(d(want.amount)) {
			t.Errorf("step %d: amount %s, want %v", i, got.Amount, want.amount)
		}
		if !got.PutStrike.Equal(d(want.strike)) {
			t.Errorf("step %d: strike %s, want %v", i, got.PutStrike, want.strike)
		}
		if want.action == model.ActionCreateSyntheticCall {
			if !got.SyntheticValue.Valid || !got.SyntheticValue.Decimal.Equal(d(want.value)) {
				t.Errorf("step %d: synthetic value %v, want %v", i, got.SyntheticValue, want.value)
			}
		} else if got.SyntheticValue.Valid {
			t.Errorf("step %d: unmatched step should have null synthetic value", i)
		}
	}

	if !res.RemainingFutures.IsZero() || !res.RemainingCash.IsZero() {
		t.Errorf("ledger should be fully drained, got futures=%s cash=%s",
			res.RemainingFutures, res.RemainingCash)
	}

	if len(res.SyntheticCalls) != 6 {
		t.Fatalf("expected 6 synthetic call lots, got %d", len(res.SyntheticCalls))
	}
	first := res.SyntheticCalls[0]
	if !first.TotalValue.Equal(d(55000)) {
		t.Errorf("first lot total = %s, want 55000", first.TotalValue)
	}

	// Portfolio: no stock rows (both drained), 6 synthetic, 3 original calls,
	// 1 unmatched put of 15000 @ 1100.
	var synth, orig, unmatched, stock int
	for _, e := range res.Portfolio {
		switch e.Type {
		case model.TypeSyntheticCall:
			synth++
		case model.TypeOriginalCall:
			orig++
		case model.TypeUnmatchedPut:
			unmatched++
			if !e.Position.Equal(d(15000)) || !e.Strike.Decimal.Equal(d(1100)) {
				t.Errorf("unmatched put row: %s @ %s, want 15000 @ 1100",
					e.Position, e.Strike.Decimal)
			}
		case model.TypeFutures, model.TypeCash:
			stock++
		}
	}
	if stock != 0 || synth != 6 || orig != 3 || unmatched != 1 {
		t.Errorf("portfolio rows: stock=%d synth=%d orig=%d unmatched=%d", stock, synth, orig, unmatched)
	}
}

// --- Conservation properties ---

func TestTransform_StockConservation(t *testing.T) {
	cases := [][]model.Position{
		samplePositions(),
		{fut(100, 1191), put(30, 1200, 25)},
		{fut(100, 1191), cash(50, 1190), put(500, 1200, 25)},
		{cash(80, 1190), put(80, 1100, 4), put(20, 1100, 5)},
	}
	for i, positions := range cases {
		res, err := Transform(positions)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}

		totalStock := decimal.Zero
		for _, p := range positions {
			if p.IsStock() {
				totalStock = totalStock.Add(p.Quantity)
			}
		}
		consumed := decimal.Zero
		for _, c := range res.SyntheticCalls {
			consumed = consumed.Add(c.Quantity)
		}
		got := consumed.Add(res.RemainingFutures).Add(res.RemainingCash)
		if !got.Equal(totalStock) {
			t.Errorf("case %d: consumed+remaining=%s, want %s", i, got, totalStock)
		}
	}
}

func TestTransform_PutConservation(t *testing.T) {
	positions := samplePositions()
	res, err := Transform(positions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Per strike: synthetic quantity + unmatched quantity = original put quantity.
	matched := map[string]decimal.Decimal{}
	for _, c := range res.SyntheticCalls {
		k := c.PutStrike.String()
		matched[k] = matched[k].Add(c.Quantity)
	}
	unmatched := map[string]decimal.Decimal{}
	for _, e := range res.Portfolio {
		if e.Type == model.TypeUnmatchedPut {
			k := e.Strike.Decimal.String()
			unmatched[k] = unmatched[k].Add(e.Position)
		}
	}
	for _, p := range positions {
		if p.Kind != model.KindPut {
			continue
		}
		k := p.Strike.Decimal.String()
		got := matched[k].Add(unmatched[k])
		if !got.Equal(p.Quantity) {
			t.Errorf("strike %s: matched+unmatched=%s, want %s", k, got, p.Quantity)
		}
	}
}

func TestTransform_SourcePriority(t *testing.T) {
	res, err := Transform(samplePositions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Replaying the log, no Cash draw may occur while futures capacity remains.
	futures := d(100000)
	for _, step := range res.Log {
		if step.Action != model.ActionCreateSyntheticCall {
			continue
		}
		switch step.Source {
		case "Futures":
			futures = futures.Sub(step.Amount)
		case "Cash":
			if futures.IsPositive() {
				t.Fatalf("step %d drew from Cash with %s futures remaining", step.Step, futures)
			}
		}
	}
}

func TestTransform_StrikeOrderNonIncreasing(t *testing.T) {
	res, err := Transform(samplePositions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prev := decimal.NullDecimal{}
	for _, step := range res.Log {
		if step.Action != model.ActionCreateSyntheticCall {
			continue
		}
		if prev.Valid && step.PutStrike.GreaterThan(prev.Decimal) {
			t.Fatalf("strike order violated: %s after %s", step.PutStrike, prev.Decimal)
		}
		prev = decimal.NewNullDecimal(step.PutStrike)
	}
}

// --- Edge cases ---

func TestTransform_SkipsStrikelessPuts(t *testing.T) {
	positions := []model.Position{
		fut(100, 1191),
		{Kind: model.KindPut, Quantity: d(50), MarketPrice: d(10)}, // no strike
		put(30, 1200, 25),
	}
	res, err := Transform(positions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, step := range res.Log {
		if !step.PutStrike.Equal(d(1200)) {
			t.Errorf("strikeless put leaked into the log: %+v", step)
		}
	}
	if !res.RemainingFutures.Equal(d(70)) {
		t.Errorf("expected 70 futures remaining, got %s", res.RemainingFutures)
	}
}

func TestTransform_ZeroQuantityLotNoSteps(t *testing.T) {
	res, err := Transform([]model.Position{fut(100, 1191), put(0, 1200, 25)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Log) != 0 {
		t.Errorf("zero-quantity lot should produce no steps, got %d", len(res.Log))
	}
}

func TestTransform_TiedStrikesProcessedLotByLot(t *testing.T) {
	// Two lots at the same strike, ledger covers the first and half the
	// second. Residual must be attributed to the second lot, in both the
	// log and the portfolio.
	positions := []model.Position{
		fut(80, 1191),
		put(50, 1100, 4),
		put(50, 1100, 5),
	}
	res, err := Transform(positions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Log) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(res.Log))
	}
	if !res.Log[0].Amount.Equal(d(50)) || !res.Log[0].PutPrice.Equal(d(4)) {
		t.Errorf("first lot should fill fully at price 4: %+v", res.Log[0])
	}
	if !res.Log[1].Amount.Equal(d(30)) || !res.Log[1].PutPrice.Equal(d(5)) {
		t.Errorf("second lot should fill 30 at price 5: %+v", res.Log[1])
	}
	last := res.Log[2]
	if last.Action != model.ActionUnmatchedPuts || !last.Amount.Equal(d(20)) || !last.PutPrice.Equal(d(5)) {
		t.Errorf("residual should be 20 units of the second lot: %+v", last)
	}

	var residual *model.FinalPortfolioEntry
	for i, e := range res.Portfolio {
		if e.Type == model.TypeUnmatchedPut {
			if residual != nil {
				t.Fatal("expected a single unmatched put row")
			}
			residual = &res.Portfolio[i]
		}
	}
	if residual == nil {
		t.Fatal("expected an unmatched put row")
	}
	if !residual.Position.Equal(d(20)) || !residual.ValuePerUnit.Equal(d(5)) {
		t.Errorf("unmatched row should carry the second lot's price: %+v", residual)
	}
}

func TestTransform_NoPuts(t *testing.T) {
	res, err := Transform([]model.Position{fut(100, 1191), call(10, 1250, 4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Log) != 0 || len(res.SyntheticCalls) != 0 {
		t.Errorf("no puts should mean no steps and no synthetic calls")
	}
	if len(res.Portfolio) != 2 {
		t.Fatalf("expected futures row + call row, got %d rows", len(res.Portfolio))
	}
	if res.Portfolio[0].Type != model.TypeFutures || res.Portfolio[1].Type != model.TypeOriginalCall {
		t.Errorf("unexpected row order: %s, %s", res.Portfolio[0].Type, res.Portfolio[1].Type)
	}
}

func TestTransform_MultipleLotsAfterExhaustion(t *testing.T) {
	// The ledger drains on the first lot; both later lots still get their
	// own UnmatchedPuts step.
	positions := []model.Position{
		fut(10, 1191),
		put(10, 1300, 60),
		put(20, 1200, 25),
		put(30, 1100, 4),
	}
	res, err := Transform(positions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var unmatchedSteps int
	for _, step := range res.Log {
		if step.Action == model.ActionUnmatchedPuts {
			unmatchedSteps++
		}
	}
	if unmatchedSteps != 2 {
		t.Errorf("expected 2 unmatched steps, got %d", unmatchedSteps)
	}
}

func TestTransform_TotalValueExact(t *testing.T) {
	res, err := Transform(samplePositions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, e := range res.Portfolio {
		if !e.TotalValue.Equal(e.Position.Mul(e.ValuePerUnit)) {
			t.Errorf("row %d: total %s != %s × %s", i, e.TotalValue, e.Position, e.ValuePerUnit)
		}
	}
}

func TestTransform_NoUnderlying(t *testing.T) {
	_, err := Transform([]model.Position{put(10, 1200, 25)})
	if err != ErrNoUnderlyingPrice {
		t.Errorf("expected ErrNoUnderlyingPrice, got %v", err)
	}
}
