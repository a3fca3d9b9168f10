// Package model defines the core domain types shared across the parity engine.
// All quantities and monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentKind classifies an input position.
type InstrumentKind string

const (
	KindFutures InstrumentKind = "futures"
	KindCash    InstrumentKind = "cash"
	KindPut     InstrumentKind = "put"
	KindCall    InstrumentKind = "call"
)

// Source identifies which side of the stock ledger a draw came from.
type Source string

const (
	SourceFutures Source = "Futures"
	SourceCash    Source = "Cash"
	SourceNone    Source = ""
)

// Step actions recorded in the transformation log.
const (
	ActionCreateSyntheticCall = "Create Synthetic Call"
	ActionUnmatchedPuts       = "Unmatched Puts"
)

// Entry types in the final portfolio.
const (
	TypeFutures       = "Futures"
	TypeCash          = "Cash"
	TypeSyntheticCall = "Synthetic Call"
	TypeOriginalCall  = "Original Call"
	TypeUnmatchedPut  = "Unmatched Put"
)

// Risk classifications for final portfolio rows.
const (
	RiskLongStock     = "Long Stock"
	RiskCallLike      = "Call-like"
	RiskPutProtection = "Put Protection"
)

// Position is one normalized input row. Strike is null for futures and cash.
// Quantity is non-negative; short positions are rejected at ingestion.
type Position struct {
	Kind        InstrumentKind      `json:"kind"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Strike      decimal.NullDecimal `json:"strike"`
	MarketPrice decimal.Decimal     `json:"market_price"`
}

// IsStock reports whether the position counts toward the stock ledger.
func (p Position) IsStock() bool {
	return p.Kind == KindFutures || p.Kind == KindCash
}

// SyntheticCallLot is one synthetic call created by pairing stock with a put.
// Immutable once created.
type SyntheticCallLot struct {
	Strike       decimal.Decimal `json:"strike"`
	Quantity     decimal.Decimal `json:"quantity"`
	ValuePerUnit decimal.Decimal `json:"value_per_unit"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Source       Source          `json:"source"`     // Futures or Cash leg consumed
	PutStrike    decimal.Decimal `json:"put_strike"` // strike of the paired put
}

// TransformationStep is one append-only log record of the allocation run.
// SyntheticValue is null for UnmatchedPuts steps (rendered as N/A).
type TransformationStep struct {
	Step           int                 `json:"step"`
	Action         string              `json:"action"`
	Source         string              `json:"source"`
	Amount         decimal.Decimal     `json:"amount"`
	PutStrike      decimal.Decimal     `json:"put_strike"`
	PutPrice       decimal.Decimal     `json:"put_price"`
	SyntheticValue decimal.NullDecimal `json:"synthetic_value"`
}

// FinalPortfolioEntry is one row of the normalized risk view.
// TotalValue always equals Position × ValuePerUnit exactly.
type FinalPortfolioEntry struct {
	Type         string              `json:"type"`
	Strike       decimal.NullDecimal `json:"strike"`
	Position     decimal.Decimal     `json:"position"`
	ValuePerUnit decimal.Decimal     `json:"value_per_unit"`
	TotalValue   decimal.Decimal     `json:"total_value"`
	RiskType     string              `json:"risk_type"`
}

// Run is the persisted record of one transformation invocation.
// The step log and portfolio entries are stored alongside it.
type Run struct {
	ID               string          `json:"id" db:"id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UnderlyingPrice  decimal.Decimal `json:"underlying_price" db:"underlying_price"`
	RemainingFutures decimal.Decimal `json:"remaining_futures" db:"remaining_futures"`
	RemainingCash    decimal.Decimal `json:"remaining_cash" db:"remaining_cash"`
	PositionCount    int             `json:"position_count" db:"position_count"`
	StepCount        int             `json:"step_count" db:"step_count"`
	EntryCount       int             `json:"entry_count" db:"entry_count"`
}
