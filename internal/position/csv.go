// Package position handles ingestion and export of the flat tabular formats
// the engine speaks: the input position schema and the two output tables
// (final portfolio, transformation log).
//
// Input schema: Instrument, Position, Strike, Market price. Instrument
// matching is case- and whitespace-insensitive; "put"/"call" substrings and
// the exact words "futures"/"cash" are recognized. Rows with any other
// instrument are skipped with a warning; legacy files carry stray annotation
// rows and must keep loading.
package position

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// ErrMalformedInput is wrapped by every parse failure: unreadable CSV,
// non-numeric quantity or price, negative quantity, or an option row
// without a strike. Callers fail the whole run before any allocation.
var ErrMalformedInput = errors.New("position: malformed input")

// Input column headers, matched case-insensitively.
const (
	colInstrument  = "instrument"
	colPosition    = "position"
	colStrike      = "strike"
	colMarketPrice = "market price"
)

// classifyInstrument maps a raw instrument cell to a kind. The bool is
// false for unrecognized strings.
func classifyInstrument(raw string) (model.InstrumentKind, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "futures":
		return model.KindFutures, true
	case s == "cash":
		return model.KindCash, true
	case strings.Contains(s, "put"):
		return model.KindPut, true
	case strings.Contains(s, "call"):
		return model.KindCall, true
	}
	return "", false
}

// ParseCSV reads the input position table. Column order is taken from the
// header row. Unrecognized instrument rows are dropped (logged at Warn);
// anything else that fails to parse aborts with ErrMalformedInput.
func ParseCSV(r io.Reader) ([]model.Position, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read header: %v", ErrMalformedInput, err)
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colInstrument, colPosition, colMarketPrice} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedInput, required)
		}
	}
	strikeCol, hasStrikeCol := idx[colStrike]

	var positions []model.Position
	var skipped int
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, line+1, err)
		}
		line++

		field := func(i int) string {
			if i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		kind, ok := classifyInstrument(field(idx[colInstrument]))
		if !ok {
			skipped++
			continue
		}

		qty, err := decimal.NewFromString(field(idx[colPosition]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad position %q", ErrMalformedInput, line, field(idx[colPosition]))
		}
		if qty.IsNegative() {
			return nil, fmt.Errorf("%w: line %d: negative position %s", ErrMalformedInput, line, qty)
		}

		price, err := decimal.NewFromString(field(idx[colMarketPrice]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad market price %q", ErrMalformedInput, line, field(idx[colMarketPrice]))
		}

		var strike decimal.NullDecimal
		if hasStrikeCol {
			if raw := field(strikeCol); raw != "" {
				s, err := decimal.NewFromString(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: bad strike %q", ErrMalformedInput, line, raw)
				}
				strike = decimal.NewNullDecimal(s)
			}
		}
		if (kind == model.KindPut || kind == model.KindCall) && !strike.Valid {
			return nil, fmt.Errorf("%w: line %d: %s row without strike", ErrMalformedInput, line, kind)
		}

		positions = append(positions, model.Position{
			Kind:        kind,
			Quantity:    qty,
			Strike:      strike,
			MarketPrice: price,
		})
	}

	if skipped > 0 {
		slog.Warn("skipped unrecognized instrument rows", "count", skipped)
	}
	return positions, nil
}

// WritePortfolioCSV writes the final portfolio table with its header row.
// Values are written exactly as computed; rounding belongs to presentation.
func WritePortfolioCSV(w io.Writer, entries []model.FinalPortfolioEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Type", "Strike", "Position", "Value per Unit", "Total Value", "Risk Type"}); err != nil {
		return err
	}
	for _, e := range entries {
		strike := ""
		if e.Strike.Valid {
			strike = e.Strike.Decimal.String()
		}
		if err := cw.Write([]string{
			e.Type,
			strike,
			e.Position.String(),
			e.ValuePerUnit.String(),
			e.TotalValue.String(),
			e.RiskType,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLogCSV writes the transformation log table with its header row.
// Unmatched steps carry N/A in the synthetic value column.
func WriteLogCSV(w io.Writer, steps []model.TransformationStep) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Step", "Action", "Source", "Amount", "Put Strike", "Put Price", "Synthetic Value"}); err != nil {
		return err
	}
	for _, s := range steps {
		value := "N/A"
		if s.SyntheticValue.Valid {
			value = s.SyntheticValue.Decimal.String()
		}
		if err := cw.Write([]string{
			fmt.Sprintf("%d", s.Step),
			s.Action,
			s.Source,
			s.Amount.String(),
			s.PutStrike.String(),
			s.PutPrice.String(),
			value,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
