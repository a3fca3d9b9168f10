// Package risk aggregates a final portfolio into the coarse exposure view
// consumed by dashboards and export: total value, value per risk class,
// and value per entry type.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// Summary is the aggregate exposure of one transformed portfolio.
type Summary struct {
	TotalValue        decimal.Decimal            `json:"total_value"`
	LongStockExposure decimal.Decimal            `json:"long_stock_exposure"`
	CallLikeExposure  decimal.Decimal            `json:"call_like_exposure"`
	PutProtection     decimal.Decimal            `json:"put_protection"`
	ValueByType       map[string]decimal.Decimal `json:"value_by_type"`
	SyntheticCallRows int                        `json:"synthetic_call_rows"`
	UnmatchedPutRows  int                        `json:"unmatched_put_rows"`
}

// Summarize folds portfolio entries into a Summary. Pure function; entries
// are not modified.
func Summarize(entries []model.FinalPortfolioEntry) Summary {
	s := Summary{ValueByType: make(map[string]decimal.Decimal)}

	for _, e := range entries {
		s.TotalValue = s.TotalValue.Add(e.TotalValue)
		s.ValueByType[e.Type] = s.ValueByType[e.Type].Add(e.TotalValue)

		switch e.RiskType {
		case model.RiskLongStock:
			s.LongStockExposure = s.LongStockExposure.Add(e.TotalValue)
		case model.RiskCallLike:
			s.CallLikeExposure = s.CallLikeExposure.Add(e.TotalValue)
		case model.RiskPutProtection:
			s.PutProtection = s.PutProtection.Add(e.TotalValue)
		}

		switch e.Type {
		case model.TypeSyntheticCall:
			s.SyntheticCallRows++
		case model.TypeUnmatchedPut:
			s.UnmatchedPutRows++
		}
	}

	return s
}
