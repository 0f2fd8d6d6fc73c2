// Package ev implements the expected-value trade gate: a fill-probability
// heuristic over market micro-structure features, an EV accept/reject/size
// decision, and a bounded rolling history of realized fills used to
// recalibrate future slippage budgets.
package ev

import "math"

// Fill probability feature weights. Hand-tuned constants with no fitted
// derivation; preserved exactly for behavioral parity. Candidates for
// empirical recalibration, never for silent adjustment.
const (
	weightFillRate        = 0.4
	weightDepthBalance    = 0.2
	weightSpreadTightness = 0.2
	weightSpeedFactor     = 0.2

	logisticSteepness = 4.0

	// MinPFill and MaxPFill clamp the probability output: never fully
	// certain a resting order fills, never fully certain it won't.
	MinPFill = 0.10
	MaxPFill = 0.95
)

// FillProbability maps micro-structure features to a fill probability via a
// weighted composite score and a logistic transform:
//
//	depthBalance    = 1 / (1 + |1 - depthRatio|)   (best at ratio 1)
//	spreadTightness = 1 / (1 + spreadBps/10)
//	speedFactor     = 1 / (1 + latencyMs/100)
//	p               = 1 / (1 + exp(-4*(score-0.5)))
//
// clamped to [0.10, 0.95]. Probabilities are unitless, so float64 is fine
// here; only money stays decimal.
func FillProbability(makerFillRate, depthRatio, spreadBps, latencyMs float64) float64 {
	if makerFillRate < 0 {
		makerFillRate = 0
	}
	if makerFillRate > 1 {
		makerFillRate = 1
	}
	if spreadBps < 0 {
		spreadBps = 0
	}
	if latencyMs < 0 {
		latencyMs = 0
	}

	depthBalance := 1.0 / (1.0 + math.Abs(1.0-depthRatio))
	spreadTightness := 1.0 / (1.0 + spreadBps/10.0)
	speedFactor := 1.0 / (1.0 + latencyMs/100.0)

	score := weightFillRate*makerFillRate +
		weightDepthBalance*depthBalance +
		weightSpreadTightness*spreadTightness +
		weightSpeedFactor*speedFactor

	p := 1.0 / (1.0 + math.Exp(-logisticSteepness*(score-0.5)))

	if p < MinPFill {
		return MinPFill
	}
	if p > MaxPFill {
		return MaxPFill
	}
	return p
}
