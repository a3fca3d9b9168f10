package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synthview/parity-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Runs are immutable, so there is no invalidation: inserts populate
// the cache and reads fall back to the primary on a miss.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) InsertRun(ctx context.Context, run *model.Run, steps []model.TransformationStep, entries []model.FinalPortfolioEntry) error {
	if err := s.primary.InsertRun(ctx, run, steps, entries); err != nil {
		return err
	}
	s.cache(ctx, runKey(run.ID), run)
	s.cache(ctx, stepsKey(run.ID), steps)
	s.cache(ctx, entriesKey(run.ID), entries)
	return nil
}

func (s *CachedStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var r model.Run
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, runKey(id), r)
	return r, nil
}

func (s *CachedStore) GetSteps(ctx context.Context, runID string) ([]model.TransformationStep, error) {
	data, err := s.rdb.Get(ctx, stepsKey(runID)).Bytes()
	if err == nil {
		var steps []model.TransformationStep
		if json.Unmarshal(data, &steps) == nil {
			return steps, nil
		}
	}

	steps, err := s.primary.GetSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, stepsKey(runID), steps)
	return steps, nil
}

func (s *CachedStore) GetEntries(ctx context.Context, runID string) ([]model.FinalPortfolioEntry, error) {
	data, err := s.rdb.Get(ctx, entriesKey(runID)).Bytes()
	if err == nil {
		var entries []model.FinalPortfolioEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.GetEntries(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, entriesKey(runID), entries)
	return entries, nil
}

// ListRuns is not cached; the listing changes on every insert.
func (s *CachedStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	return s.primary.ListRuns(ctx)
}

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func runKey(id string) string     { return fmt.Sprintf("run:%s", id) }
func stepsKey(id string) string   { return fmt.Sprintf("steps:%s", id) }
func entriesKey(id string) string { return fmt.Sprintf("entries:%s", id) }
