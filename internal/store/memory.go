package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]*model.EVDecision
	order     []string // decision IDs in insertion order
	fills     []model.FillResult
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decisions: make(map[string]*model.EVDecision),
	}
}

func (s *MemoryStore) InsertDecision(_ context.Context, d *model.EVDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[d.ID]; exists {
		return fmt.Errorf("decision %s already exists", d.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *d
	s.decisions[d.ID] = &copy
	s.order = append(s.order, d.ID)
	return nil
}

func (s *MemoryStore) GetDecision(_ context.Context, id string) (*model.EVDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.decisions[id]
	if !ok {
		return nil, fmt.Errorf("decision %s not found", id)
	}
	copy := *d
	return &copy, nil
}

func (s *MemoryStore) ListDecisionsByInstrument(_ context.Context, instrument string) ([]model.EVDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.EVDecision
	for i := len(s.order) - 1; i >= 0; i-- {
		d := s.decisions[s.order[i]]
		if d.Instrument == instrument {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (s *MemoryStore) InsertFillResult(_ context.Context, fr *model.FillResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fills = append(s.fills, *fr)
	return nil
}

func (s *MemoryStore) ListFillResults(_ context.Context, decisionID string) ([]model.FillResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.FillResult
	for _, fr := range s.fills {
		if fr.DecisionID == decisionID {
			result = append(result, fr)
		}
	}
	return result, nil
}

// GetVenueExposures sums the recommended size of accepted decisions that
// have no recorded fill result yet, per venue.
func (s *MemoryStore) GetVenueExposures(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settled := make(map[string]bool, len(s.fills))
	for _, fr := range s.fills {
		if fr.DecisionID != "" {
			settled[fr.DecisionID] = true
		}
	}

	exposures := make(map[string]decimal.Decimal)
	for _, d := range s.decisions {
		if !d.ShouldTrade || d.Exchange == "" || settled[d.ID] {
			continue
		}
		exposures[d.Exchange] = exposures[d.Exchange].Add(d.RecommendedSizeTL)
	}
	return exposures, nil
}
