// Package store defines the persistence interface for transformation runs.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Runs are immutable: one insert writes the run header, its step log, and its
// portfolio entries together, and nothing is updated afterwards.
package store

import (
	"context"
	"errors"

	"github.com/synthview/parity-engine/internal/model"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("store: run not found")

// Store is the persistence interface for transformation runs.
type Store interface {
	// InsertRun persists a run together with its transformation log and
	// final portfolio, atomically.
	InsertRun(ctx context.Context, run *model.Run, steps []model.TransformationStep, entries []model.FinalPortfolioEntry) error

	// GetRun retrieves a run header by ID.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns returns all run headers, newest first.
	ListRuns(ctx context.Context) ([]model.Run, error)

	// GetSteps returns the transformation log of a run in step order.
	GetSteps(ctx context.Context, runID string) ([]model.TransformationStep, error)

	// GetEntries returns the final portfolio of a run in row order.
	GetEntries(ctx context.Context, runID string) ([]model.FinalPortfolioEntry, error)
}
