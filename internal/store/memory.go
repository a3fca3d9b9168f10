package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/synthview/parity-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*model.Run
	steps   map[string][]model.TransformationStep
	entries map[string][]model.FinalPortfolioEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*model.Run),
		steps:   make(map[string][]model.TransformationStep),
		entries: make(map[string][]model.FinalPortfolioEntry),
	}
}

func (s *MemoryStore) InsertRun(_ context.Context, run *model.Run, steps []model.TransformationStep, entries []model.FinalPortfolioEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	// Store copies to avoid external mutation.
	copy := *run
	s.runs[run.ID] = &copy
	s.steps[run.ID] = append([]model.TransformationStep(nil), steps...)
	s.entries[run.ID] = append([]model.FinalPortfolioEntry(nil), entries...)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	copy := *run
	return &copy, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) GetSteps(_ context.Context, runID string) ([]model.TransformationStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	return append([]model.TransformationStep(nil), s.steps[runID]...), nil
}

func (s *MemoryStore) GetEntries(_ context.Context, runID string) ([]model.FinalPortfolioEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	return append([]model.FinalPortfolioEntry(nil), s.entries[runID]...), nil
}
