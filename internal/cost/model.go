// Package cost estimates execution costs for a prospective trade: a
// slippage budget built from size impact, volatility, and the historical
// tail of realized slippage, plus a latency-risk cost.
//
// All monetary values use shopspring/decimal — never float64 for money.
package cost

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	bpsFactor = decimal.NewFromInt(10000)

	// DefaultSlippageMultiplier pads the raw slippage estimate; realized
	// slippage on thin TL books routinely exceeds the naive estimate.
	DefaultSlippageMultiplier = decimal.NewFromFloat(1.5)

	// DefaultLatencyPenaltyBps is the penalty per 100ms of round-trip
	// latency when none is configured.
	DefaultLatencyPenaltyBps = decimal.NewFromInt(2)

	// DefaultHistoricalP95Bps stands in for the realized-slippage tail
	// when the fill history is empty.
	DefaultHistoricalP95Bps = decimal.NewFromInt(5)
)

// Model converts trade size, volatility, and latency into cost estimates.
// Stateless: the historical P95 is an input, owned by the EV gate's
// fill history.
type Model struct {
	slippageMultiplier        decimal.Decimal
	latencyPenaltyPer100msBps decimal.Decimal
}

// NewModel creates a cost model. Non-positive parameters fall back to the
// documented defaults.
func NewModel(slippageMultiplier, latencyPenaltyPer100msBps decimal.Decimal) *Model {
	if slippageMultiplier.LessThanOrEqual(decimal.Zero) {
		slippageMultiplier = DefaultSlippageMultiplier
	}
	if latencyPenaltyPer100msBps.LessThanOrEqual(decimal.Zero) {
		latencyPenaltyPer100msBps = DefaultLatencyPenaltyBps
	}
	return &Model{
		slippageMultiplier:        slippageMultiplier,
		latencyPenaltyPer100msBps: latencyPenaltyPer100msBps,
	}
}

// SlippageBudgetBps estimates the slippage budget in basis points:
//
//	(sizeImpact + volAdjustment + historicalP95) * multiplier
//
// where sizeImpact is 1 bps per 10k currency units and volAdjustment is
// 10 bps per volatility percent. historicalP95 <= 0 falls back to the
// default tail estimate.
func (m *Model) SlippageBudgetBps(size, volatilityPct, historicalP95Bps decimal.Decimal) decimal.Decimal {
	if size.IsNegative() {
		size = decimal.Zero
	}
	if volatilityPct.IsNegative() {
		volatilityPct = decimal.Zero
	}
	if historicalP95Bps.LessThanOrEqual(decimal.Zero) {
		historicalP95Bps = DefaultHistoricalP95Bps
	}

	sizeImpact := size.Div(bpsFactor)
	volAdjustment := volatilityPct.Mul(decimal.NewFromInt(10))

	return sizeImpact.Add(volAdjustment).Add(historicalP95Bps).Mul(m.slippageMultiplier)
}

// LatencyPenaltyBps converts a measured round-trip latency into a penalty:
// (latencyMs / 100) * penaltyPer100ms. latencyMs is an input measured
// externally, not a governed duration.
func (m *Model) LatencyPenaltyBps(latencyMs decimal.Decimal) decimal.Decimal {
	if latencyMs.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return latencyMs.Div(decimal.NewFromInt(100)).Mul(m.latencyPenaltyPer100msBps)
}

// LatencyCost returns the absolute-currency latency cost:
// size * penaltyBps / 10000.
func (m *Model) LatencyCost(latencyMs, size decimal.Decimal) decimal.Decimal {
	if size.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return size.Mul(m.LatencyPenaltyBps(latencyMs)).Div(bpsFactor)
}

// PercentileBps computes the nearest-rank percentile (p in [0,100]) over a
// sample of slippage observations. The caller passes a snapshot copy so no
// lock is held during the scan. Empty samples return zero.
func PercentileBps(samples []decimal.Decimal, p float64) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	sorted := make([]decimal.Decimal, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	// Nearest-rank: ceil(p/100 * n), 1-based.
	rank := int(float64(len(sorted)) * p / 100.0)
	if float64(len(sorted))*p/100.0 > float64(rank) {
		rank++
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// VolatilityFromQuartiles derives a volatility-percent estimate from price
// distribution quartiles: the interquartile range relative to the median
// (coefficient of variation), expressed in percent. Degenerate inputs
// (non-positive median, inverted quartiles) return zero — the conservative
// "no extra volatility budget" outcome.
func VolatilityFromQuartiles(p25, p75, median decimal.Decimal) decimal.Decimal {
	if median.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	iqr := p75.Sub(p25)
	if iqr.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return iqr.Div(median).Mul(decimal.NewFromInt(100)).Round(4)
}
