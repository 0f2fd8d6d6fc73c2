package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Decision records are immutable once written, so cached decisions never
// go stale; only the exposure aggregate needs invalidation.
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

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertDecision(ctx context.Context, d *model.EVDecision) error {
	if err := s.primary.InsertDecision(ctx, d); err != nil {
		return err
	}
	s.cacheDecision(ctx, d)
	s.rdb.Del(ctx, exposuresKey())
	return nil
}

func (s *CachedStore) InsertFillResult(ctx context.Context, fr *model.FillResult) error {
	if err := s.primary.InsertFillResult(ctx, fr); err != nil {
		return err
	}
	// A fill closes a decision's open exposure.
	s.rdb.Del(ctx, exposuresKey())
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetDecision(ctx context.Context, id string) (*model.EVDecision, error) {
	data, err := s.rdb.Get(ctx, decisionKey(id)).Bytes()
	if err == nil {
		var d model.EVDecision
		if json.Unmarshal(data, &d) == nil {
			return &d, nil
		}
	}

	// Cache miss: read from primary.
	d, err := s.primary.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheDecision(ctx, d)
	return d, nil
}

func (s *CachedStore) GetVenueExposures(ctx context.Context) (map[string]decimal.Decimal, error) {
	data, err := s.rdb.Get(ctx, exposuresKey()).Bytes()
	if err == nil {
		var exposures map[string]decimal.Decimal
		if json.Unmarshal(data, &exposures) == nil {
			return exposures, nil
		}
	}

	// Cache miss.
	exposures, err := s.primary.GetVenueExposures(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(exposures); err == nil {
		s.rdb.Set(ctx, exposuresKey(), data, s.ttl)
	}
	return exposures, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListDecisionsByInstrument(ctx context.Context, instrument string) ([]model.EVDecision, error) {
	return s.primary.ListDecisionsByInstrument(ctx, instrument)
}

func (s *CachedStore) ListFillResults(ctx context.Context, decisionID string) ([]model.FillResult, error) {
	return s.primary.ListFillResults(ctx, decisionID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheDecision(ctx context.Context, d *model.EVDecision) {
	if data, err := json.Marshal(d); err == nil {
		s.rdb.Set(ctx, decisionKey(d.ID), data, s.ttl)
	}
}

func decisionKey(id string) string { return fmt.Sprintf("decision:%s", id) }
func exposuresKey() string         { return "exposures:venues" }
