package ev

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/cost"
	"github.com/arbx/arb-engine/internal/model"
)

var (
	bpsFactor = decimal.NewFromInt(10000)

	// DefaultMinEVTL is the minimum expected value for acceptance:
	// one currency unit.
	DefaultMinEVTL = decimal.NewFromInt(1)

	// DefaultMaxPositionTL caps the recommended size.
	DefaultMaxPositionTL = decimal.NewFromInt(50000)
)

// DefaultMinPFill rejects trades whose fill probability is too weak to
// trust the edge estimate, regardless of EV.
const DefaultMinPFill = 0.25

// Sizing policy thresholds: EV strength is EV relative to the acceptance
// threshold. Strong edges scale up (capped), marginal ones scale down.
var (
	strengthScaleUp   = decimal.NewFromInt(3)
	strengthKeep      = decimal.NewFromFloat(1.5)
	maxSizeMultiplier = decimal.NewFromFloat(1.5)
	trimMultiplier    = decimal.NewFromFloat(0.7)
)

// Params configures a Gate. Zero values fall back to the documented
// defaults.
type Params struct {
	MinEVTL       decimal.Decimal
	MaxPositionTL decimal.Decimal
	MinPFill      float64
}

// Inputs are the features of one prospective trade. Money and rates stay
// decimal; unitless micro-structure ratios and milliseconds are float64.
type Inputs struct {
	SpreadBps     decimal.Decimal `json:"spread_bps"`
	SizeTL        decimal.Decimal `json:"size_tl"`
	FeeBps        decimal.Decimal `json:"fee_bps"`
	MakerFillRate float64         `json:"maker_fill_rate"`
	DepthRatio    float64         `json:"depth_ratio"`
	LatencyMs     float64         `json:"latency_ms"`
	VolatilityPct decimal.Decimal `json:"volatility_pct"`
}

// Gate combines edge, fill probability, and total cost into an expected
// value and issues accept/reject/size decisions.
//
// The gate owns the only mutable state in the engine: a bounded rolling
// history of realized fills feeding the slippage budget's P95 term.
// Multiple independent gates (one per symbol) are valid; there is no
// package-level state.
type Gate struct {
	costs   *cost.Model
	params  Params
	history *fillHistory
}

// NewGate creates a gate around the given cost model.
func NewGate(costs *cost.Model, params Params) *Gate {
	if params.MinEVTL.LessThanOrEqual(decimal.Zero) {
		params.MinEVTL = DefaultMinEVTL
	}
	if params.MaxPositionTL.LessThanOrEqual(decimal.Zero) {
		params.MaxPositionTL = DefaultMaxPositionTL
	}
	if params.MinPFill <= 0 || params.MinPFill >= 1 {
		params.MinPFill = DefaultMinPFill
	}
	return &Gate{
		costs:   costs,
		params:  params,
		history: newFillHistory(),
	}
}

// CalculateEV computes the expected value of a prospective trade:
//
//	edge         = size * spreadBps / 10000
//	expectedEdge = edge * pFill
//	feeCost      = size * feeBps / 10000 * 2   (round trip)
//	ev           = expectedEdge - (feeCost + slippageCost + latencyCost)
//
// Deterministic: identical inputs always produce an identical breakdown.
func (g *Gate) CalculateEV(in Inputs) (decimal.Decimal, model.EVBreakdown) {
	size := in.SizeTL
	if size.IsNegative() {
		size = decimal.Zero
	}

	spreadF, _ := in.SpreadBps.Float64()
	pFill := FillProbability(in.MakerFillRate, in.DepthRatio, spreadF, in.LatencyMs)
	pFillDec := decimal.NewFromFloat(pFill)

	edge := size.Mul(in.SpreadBps).Div(bpsFactor)
	expectedEdge := edge.Mul(pFillDec)

	feeCost := size.Mul(in.FeeBps).Div(bpsFactor).Mul(decimal.NewFromInt(2))

	historicalP95 := cost.PercentileBps(g.history.snapshotSlippage(), 95)
	slippageBps := g.costs.SlippageBudgetBps(size, in.VolatilityPct, historicalP95)
	slippageCost := size.Mul(slippageBps).Div(bpsFactor)

	latencyCost := g.costs.LatencyCost(decimal.NewFromFloat(in.LatencyMs), size)

	totalCost := feeCost.Add(slippageCost).Add(latencyCost)
	evTL := expectedEdge.Sub(totalCost)

	evBps := decimal.Zero
	if size.IsPositive() {
		evBps = evTL.Div(size).Mul(bpsFactor)
	}

	breakdown := model.EVBreakdown{
		PFill:          pFillDec.Round(4),
		EdgeTL:         edge.Round(4),
		ExpectedEdgeTL: expectedEdge.Round(4),
		FeeCost:        feeCost.Round(4),
		SlippageCost:   slippageCost.Round(4),
		LatencyCost:    latencyCost.Round(4),
		TotalCost:      totalCost.Round(4),
		EVTL:           evTL.Round(4),
		EVBps:          evBps.Round(4),
	}
	return evTL, breakdown
}

// ShouldTrade issues the accept/reject/size decision. Accept requires
// EV >= the minimum threshold and a fill probability at or above the
// configured floor. On accept the recommended size is scaled by EV
// strength and clamped to the maximum position; on reject it is zero.
func (g *Gate) ShouldTrade(in Inputs) model.EVDecision {
	evTL, breakdown := g.CalculateEV(in)

	pFill, _ := breakdown.PFill.Float64()
	accept := evTL.GreaterThanOrEqual(g.params.MinEVTL) && pFill >= g.params.MinPFill

	decision := model.EVDecision{
		ShouldTrade:       accept,
		RecommendedSizeTL: decimal.Zero,
		SizeMultiplier:    decimal.Zero,
		Breakdown:         breakdown,
		CreatedAt:         time.Now().UTC(),
	}
	if !accept {
		return decision
	}

	strength := evTL.Div(g.params.MinEVTL)

	multiplier := trimMultiplier
	switch {
	case strength.GreaterThan(strengthScaleUp):
		multiplier = decimal.NewFromInt(1).Add(strength.Div(decimal.NewFromInt(10)))
		if multiplier.GreaterThan(maxSizeMultiplier) {
			multiplier = maxSizeMultiplier
		}
	case strength.GreaterThan(strengthKeep):
		multiplier = decimal.NewFromInt(1)
	}

	recommended := in.SizeTL.Mul(multiplier)
	if recommended.GreaterThan(g.params.MaxPositionTL) {
		recommended = g.params.MaxPositionTL
	}

	decision.RecommendedSizeTL = recommended.Round(2)
	decision.SizeMultiplier = multiplier.Round(4)
	return decision
}

// RecordFillResult appends realized execution feedback to the rolling
// history. slippageBps is nil for unfilled orders. Safe to call from a
// different goroutine than the evaluator; decisions never wait on or are
// invalidated by a concurrent append.
func (g *Gate) RecordFillResult(filled bool, slippageBps *decimal.Decimal) {
	g.history.append(model.FillResult{
		Filled:      filled,
		SlippageBps: slippageBps,
		At:          time.Now().UTC(),
	})
}

// HistorySize returns the number of recorded fill results (<= capacity).
func (g *Gate) HistorySize() int {
	return g.history.size()
}

// RealizedFillRate returns the fraction of recorded fills, 0.5 when empty.
func (g *Gate) RealizedFillRate() float64 {
	return g.history.fillRate()
}

// SlippageP95 returns the 95th percentile of recorded slippage, zero when
// no filled entries carry a slippage observation.
func (g *Gate) SlippageP95() decimal.Decimal {
	return cost.PercentileBps(g.history.snapshotSlippage(), 95)
}
