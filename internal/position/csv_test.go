package position

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

const sampleCSV = `Instrument,Position,Strike,Market price
Futures,100000,,1191
Cash,200000,,1190
Puts,5000,1240,60
Calls,11000,1250,4
`

func TestParseCSV_Valid(t *testing.T) {
	positions, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 4 {
		t.Fatalf("expected 4 positions, got %d", len(positions))
	}

	if positions[0].Kind != model.KindFutures || !positions[0].Quantity.Equal(d(100000)) {
		t.Errorf("bad futures row: %+v", positions[0])
	}
	if positions[0].Strike.Valid {
		t.Error("futures row should have null strike")
	}
	if positions[2].Kind != model.KindPut || !positions[2].Strike.Decimal.Equal(d(1240)) {
		t.Errorf("bad put row: %+v", positions[2])
	}
	if positions[3].Kind != model.KindCall || !positions[3].MarketPrice.Equal(d(4)) {
		t.Errorf("bad call row: %+v", positions[3])
	}
}

func TestParseCSV_CaseAndWhitespaceInsensitive(t *testing.T) {
	input := "instrument, position, strike, MARKET PRICE\n" +
		"  FUTURES ,100,,1191\n" +
		" Put options ,50,1200,25\n"
	positions, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].Kind != model.KindFutures || positions[1].Kind != model.KindPut {
		t.Errorf("bad kinds: %s, %s", positions[0].Kind, positions[1].Kind)
	}
}

func TestParseCSV_SkipsUnrecognizedInstruments(t *testing.T) {
	input := "Instrument,Position,Strike,Market price\n" +
		"Futures,100,,1191\n" +
		"Note: hedged per desk policy,0,,0\n" +
		"Bond,500,,99\n"
	positions, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("stray rows should be skipped, got %d positions", len(positions))
	}
}

func TestParseCSV_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"non-numeric position", "Instrument,Position,Strike,Market price\nFutures,abc,,1191\n"},
		{"negative position", "Instrument,Position,Strike,Market price\nFutures,-5,,1191\n"},
		{"non-numeric price", "Instrument,Position,Strike,Market price\nCash,100,,n/a\n"},
		{"put without strike", "Instrument,Position,Strike,Market price\nPuts,100,,25\n"},
		{"call without strike", "Instrument,Position,Strike,Market price\nCalls,100,,12\n"},
		{"bad strike", "Instrument,Position,Strike,Market price\nPuts,100,high,25\n"},
		{"missing column", "Instrument,Position\nFutures,100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestWritePortfolioCSV(t *testing.T) {
	entries := []model.FinalPortfolioEntry{
		{
			Type:         model.TypeSyntheticCall,
			Strike:       decimal.NewNullDecimal(d(1240)),
			Position:     d(5000),
			ValuePerUnit: d(11),
			TotalValue:   d(55000),
			RiskType:     model.RiskCallLike,
		},
		{
			Type:         model.TypeFutures,
			Position:     d(100),
			ValuePerUnit: d(1191),
			TotalValue:   d(119100),
			RiskType:     model.RiskLongStock,
		},
	}

	var buf bytes.Buffer
	if err := WritePortfolioCSV(&buf, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Type,Strike,Position,Value per Unit,Total Value,Risk Type" {
		t.Errorf("bad header: %s", lines[0])
	}
	if lines[1] != "Synthetic Call,1240,5000,11,55000,Call-like" {
		t.Errorf("bad synthetic row: %s", lines[1])
	}
	if lines[2] != "Futures,,100,1191,119100,Long Stock" {
		t.Errorf("stock row should have empty strike: %s", lines[2])
	}
}

func TestWriteLogCSV_UnmatchedShowsNA(t *testing.T) {
	steps := []model.TransformationStep{
		{
			Step: 1, Action: model.ActionCreateSyntheticCall, Source: "Futures",
			Amount: d(5000), PutStrike: d(1240), PutPrice: d(60),
			SyntheticValue: decimal.NewNullDecimal(d(11)),
		},
		{
			Step: 2, Action: model.ActionUnmatchedPuts, Source: "Puts",
			Amount: d(15000), PutStrike: d(1100), PutPrice: d(4),
		},
	}

	var buf bytes.Buffer
	if err := WriteLogCSV(&buf, steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Step,Action,Source,Amount,Put Strike,Put Price,Synthetic Value" {
		t.Errorf("bad header: %s", lines[0])
	}
	if lines[1] != "1,Create Synthetic Call,Futures,5000,1240,60,11" {
		t.Errorf("bad create row: %s", lines[1])
	}
	if lines[2] != "2,Unmatched Puts,Puts,15000,1100,4,N/A" {
		t.Errorf("bad unmatched row: %s", lines[2])
	}
}

func TestSamplePositions_RoundTrip(t *testing.T) {
	sample := SamplePositions()
	if len(sample) != 10 {
		t.Fatalf("expected 10 sample positions, got %d", len(sample))
	}

	var puts, calls, stock int
	for _, p := range sample {
		switch p.Kind {
		case model.KindPut:
			puts++
		case model.KindCall:
			calls++
		default:
			stock++
		}
	}
	if stock != 2 || puts != 5 || calls != 3 {
		t.Errorf("sample composition: stock=%d puts=%d calls=%d", stock, puts, calls)
	}
}
