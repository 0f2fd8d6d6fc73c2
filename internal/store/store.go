// Package store defines the persistence interface for the decision ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Persistence is an embedding-system concern: the numeric core never calls
// into this package. The HTTP layer records decisions and fill feedback
// here for audit and exposure accounting.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/model"
)

// Store is the decision ledger interface.
type Store interface {
	// --- EV decisions ---

	// InsertDecision appends an immutable decision record.
	InsertDecision(ctx context.Context, d *model.EVDecision) error

	// GetDecision retrieves a decision by its ID.
	GetDecision(ctx context.Context, id string) (*model.EVDecision, error)

	// ListDecisionsByInstrument returns all decisions for an instrument,
	// newest first.
	ListDecisionsByInstrument(ctx context.Context, instrument string) ([]model.EVDecision, error)

	// --- Fill feedback ---

	// InsertFillResult records realized execution feedback for a decision.
	InsertFillResult(ctx context.Context, fr *model.FillResult) error

	// ListFillResults returns fill results for a decision.
	ListFillResults(ctx context.Context, decisionID string) ([]model.FillResult, error)

	// --- Exposure accounting ---

	// GetVenueExposures returns open notional per venue: the recommended
	// size of accepted decisions that have no recorded fill result yet.
	GetVenueExposures(ctx context.Context) (map[string]decimal.Decimal, error)
}
