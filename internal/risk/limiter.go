// Package risk enforces notional exposure limits that account for
// correlation between venues.
//
// Venues operated by the same group (e.g. "binance" and "binance-tr")
// share custody, banking rails, and withdrawal queues; open arbitrage
// exposure spread across them is one risk, not several. This package
// detects venue affinity by name-prefix matching and enforces aggregate
// exposure limits on top of the per-venue cap.
package risk

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrPerVenueLimitExceeded is returned when a trade would push a single
	// venue's open exposure beyond the per-venue maximum.
	ErrPerVenueLimitExceeded = errors.New("risk: per-venue exposure limit exceeded")

	// ErrCorrelatedLimitExceeded is returned when a trade would push the
	// aggregate exposure across correlated venues beyond the group maximum.
	ErrCorrelatedLimitExceeded = errors.New("risk: correlated venue exposure limit exceeded")
)

// ExposureLimiter enforces exposure limits with venue-group awareness.
//
// Correlation detection uses venue-name prefix matching: venue identifiers
// follow {group}[-{region}] (binance, binance-tr, paribu), so a shared
// prefix marks venues settling through the same operator. PrefixLen
// controls how many leading characters must match.
type ExposureLimiter struct {
	// MaxPerVenue is the maximum absolute open notional on any single venue.
	MaxPerVenue decimal.Decimal

	// MaxCorrelated is the maximum aggregate absolute notional across all
	// venues sharing the same name prefix (correlated group).
	MaxCorrelated decimal.Decimal

	// PrefixLen is the number of leading characters of the venue name that
	// must match for two venues to be considered correlated.
	PrefixLen int
}

// NewExposureLimiter creates a limiter with the given per-venue and
// correlated exposure limits.
func NewExposureLimiter(maxPerVenue, maxCorrelated decimal.Decimal, prefixLen int) *ExposureLimiter {
	if prefixLen < 1 {
		prefixLen = 1
	}
	return &ExposureLimiter{
		MaxPerVenue:   maxPerVenue,
		MaxCorrelated: maxCorrelated,
		PrefixLen:     prefixLen,
	}
}

// CheckLimit validates whether an executed decision respects exposure
// limits.
//
// Parameters:
//   - targetVenue: venue the trade settles on
//   - notionalDelta: signed change in open notional
//   - existingExposures: map of venue → current open notional
//
// Returns nil if within limits, or an error naming the violation.
func (l *ExposureLimiter) CheckLimit(
	targetVenue string,
	notionalDelta decimal.Decimal,
	existingExposures map[string]decimal.Decimal,
) error {
	// 1. Per-venue limit.
	current := existingExposures[targetVenue]
	newExposure := current.Add(notionalDelta)

	if newExposure.Abs().GreaterThan(l.MaxPerVenue) {
		return ErrPerVenueLimitExceeded
	}

	// 2. Correlated exposure: sum |exposure| across same-prefix venues.
	targetPrefix := venuePrefix(targetVenue, l.PrefixLen)
	totalCorrelated := newExposure.Abs()

	for venue, exposure := range existingExposures {
		if venue == targetVenue {
			continue // already counted via newExposure above
		}
		if venuePrefix(venue, l.PrefixLen) == targetPrefix {
			totalCorrelated = totalCorrelated.Add(exposure.Abs())
		}
	}

	if totalCorrelated.GreaterThan(l.MaxCorrelated) {
		return ErrCorrelatedLimitExceeded
	}

	return nil
}

// venuePrefix returns the first `length` characters of a normalized venue
// name.
func venuePrefix(venue string, length int) string {
	venue = strings.ToLower(venue)
	if length >= len(venue) {
		return venue
	}
	return venue[:length]
}
