package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All quantities and values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertRun(ctx context.Context, run *model.Run, steps []model.TransformationStep, entries []model.FinalPortfolioEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, created_at, underlying_price, remaining_futures, remaining_cash, position_count, step_count, entry_count)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)`,
		run.ID, run.CreatedAt,
		run.UnderlyingPrice.String(), run.RemainingFutures.String(), run.RemainingCash.String(),
		run.PositionCount, run.StepCount, run.EntryCount,
	)
	if err != nil {
		return err
	}

	for _, st := range steps {
		var synthetic *string
		if st.SyntheticValue.Valid {
			v := st.SyntheticValue.Decimal.String()
			synthetic = &v
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO transformation_steps (run_id, step, action, source, amount, put_strike, put_price, synthetic_value)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC)`,
			run.ID, st.Step, st.Action, st.Source,
			st.Amount.String(), st.PutStrike.String(), st.PutPrice.String(), synthetic,
		)
		if err != nil {
			return err
		}
	}

	for i, e := range entries {
		var strike *string
		if e.Strike.Valid {
			v := e.Strike.Decimal.String()
			strike = &v
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO portfolio_entries (run_id, seq, type, strike, position, value_per_unit, total_value, risk_type)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
			run.ID, i, e.Type, strike,
			e.Position.String(), e.ValuePerUnit.String(), e.TotalValue.String(), e.RiskType,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	var underlying, futures, cash string

	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at,
		        underlying_price::TEXT, remaining_futures::TEXT, remaining_cash::TEXT,
		        position_count, step_count, entry_count
		 FROM runs WHERE id = $1`, id).
		Scan(&r.ID, &r.CreatedAt,
			&underlying, &futures, &cash,
			&r.PositionCount, &r.StepCount, &r.EntryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	r.UnderlyingPrice, _ = decimal.NewFromString(underlying)
	r.RemainingFutures, _ = decimal.NewFromString(futures)
	r.RemainingCash, _ = decimal.NewFromString(cash)

	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at,
		        underlying_price::TEXT, remaining_futures::TEXT, remaining_cash::TEXT,
		        position_count, step_count, entry_count
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var underlying, futures, cash string
		if err := rows.Scan(&r.ID, &r.CreatedAt,
			&underlying, &futures, &cash,
			&r.PositionCount, &r.StepCount, &r.EntryCount); err != nil {
			return nil, err
		}
		r.UnderlyingPrice, _ = decimal.NewFromString(underlying)
		r.RemainingFutures, _ = decimal.NewFromString(futures)
		r.RemainingCash, _ = decimal.NewFromString(cash)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) GetSteps(ctx context.Context, runID string) ([]model.TransformationStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT step, action, source,
		        amount::TEXT, put_strike::TEXT, put_price::TEXT, synthetic_value::TEXT
		 FROM transformation_steps WHERE run_id = $1 ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []model.TransformationStep
	for rows.Next() {
		var st model.TransformationStep
		var amount, strike, price string
		var synthetic *string

		if err := rows.Scan(&st.Step, &st.Action, &st.Source,
			&amount, &strike, &price, &synthetic); err != nil {
			return nil, err
		}

		st.Amount, _ = decimal.NewFromString(amount)
		st.PutStrike, _ = decimal.NewFromString(strike)
		st.PutPrice, _ = decimal.NewFromString(price)
		if synthetic != nil {
			v, _ := decimal.NewFromString(*synthetic)
			st.SyntheticValue = decimal.NewNullDecimal(v)
		}

		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *PostgresStore) GetEntries(ctx context.Context, runID string) ([]model.FinalPortfolioEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, strike::TEXT,
		        position::TEXT, value_per_unit::TEXT, total_value::TEXT, risk_type
		 FROM portfolio_entries WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.FinalPortfolioEntry
	for rows.Next() {
		var e model.FinalPortfolioEntry
		var position, valuePerUnit, totalValue string
		var strike *string

		if err := rows.Scan(&e.Type, &strike,
			&position, &valuePerUnit, &totalValue, &e.RiskType); err != nil {
			return nil, err
		}

		if strike != nil {
			v, _ := decimal.NewFromString(*strike)
			e.Strike = decimal.NewNullDecimal(v)
		}
		e.Position, _ = decimal.NewFromString(position)
		e.ValuePerUnit, _ = decimal.NewFromString(valuePerUnit)
		e.TotalValue, _ = decimal.NewFromString(totalValue)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
