package ev

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/cost"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testGate() *Gate {
	return NewGate(cost.NewModel(decimal.Zero, decimal.Zero), Params{})
}

func TestCalculateEVDeterministic(t *testing.T) {
	g := testGate()
	in := Inputs{
		SpreadBps:     d(40),
		SizeTL:        d(5000),
		FeeBps:        d(10),
		MakerFillRate: 0.7,
		DepthRatio:    1.0,
		LatencyMs:     50,
	}

	ev1, b1 := g.CalculateEV(in)
	ev2, b2 := g.CalculateEV(in)
	if !ev1.Equal(ev2) {
		t.Errorf("ev differs across calls: %s vs %s", ev1, ev2)
	}
	if !b1.EVTL.Equal(b2.EVTL) || !b1.PFill.Equal(b2.PFill) || !b1.TotalCost.Equal(b2.TotalCost) {
		t.Error("breakdown differs across calls")
	}
}

func TestCalculateEVBreakdownIdentity(t *testing.T) {
	g := testGate()
	in := Inputs{
		SpreadBps:     d(60),
		SizeTL:        d(10000),
		FeeBps:        d(5),
		MakerFillRate: 0.9,
		DepthRatio:    1.0,
		LatencyMs:     20,
	}

	_, b := g.CalculateEV(in)

	// edge = 10000 * 60 / 10000
	if !b.EdgeTL.Equal(d(60)) {
		t.Errorf("edge = %s, want 60", b.EdgeTL)
	}
	// round trip: 10000 * 5 / 10000 * 2
	if !b.FeeCost.Equal(d(10)) {
		t.Errorf("fee cost = %s, want 10", b.FeeCost)
	}
	// (size impact 1 + vol 0 + default P95 5) * 1.5 = 9 bps on 10000 TL
	if !b.SlippageCost.Equal(d(9)) {
		t.Errorf("slippage cost = %s, want 9", b.SlippageCost)
	}
	// (20ms / 100) * 2 bps on 10000 TL
	if !b.LatencyCost.Equal(d(0.4)) {
		t.Errorf("latency cost = %s, want 0.4", b.LatencyCost)
	}
	if !b.TotalCost.Equal(d(19.4)) {
		t.Errorf("total cost = %s, want 19.4", b.TotalCost)
	}
	if !b.ExpectedEdgeTL.Sub(b.TotalCost).Equal(b.EVTL) {
		t.Errorf("identity violated: %s - %s != %s", b.ExpectedEdgeTL, b.TotalCost, b.EVTL)
	}
}

func TestShouldTradeAcceptsStrongEdge(t *testing.T) {
	g := testGate()

	dec := g.ShouldTrade(Inputs{
		SpreadBps:     d(60),
		SizeTL:        d(10000),
		FeeBps:        d(5),
		MakerFillRate: 0.9,
		DepthRatio:    1.0,
		LatencyMs:     20,
	})

	if !dec.ShouldTrade {
		t.Fatalf("expected accept, breakdown %+v", dec.Breakdown)
	}
	if !dec.Breakdown.EVTL.GreaterThan(d(20)) {
		t.Errorf("ev = %s, want > 20", dec.Breakdown.EVTL)
	}
	// EV strength well past the scale-up threshold caps the multiplier.
	if !dec.SizeMultiplier.Equal(d(1.5)) {
		t.Errorf("multiplier = %s, want 1.5", dec.SizeMultiplier)
	}
	if !dec.RecommendedSizeTL.Equal(d(15000)) {
		t.Errorf("recommended = %s, want 15000", dec.RecommendedSizeTL)
	}
}

func TestShouldTradeRejectsWeakSignal(t *testing.T) {
	g := testGate()

	dec := g.ShouldTrade(Inputs{
		SpreadBps:     d(30),
		SizeTL:        d(5000),
		FeeBps:        d(20),
		MakerFillRate: 0.3,
		DepthRatio:    0.5,
		LatencyMs:     500,
	})

	if dec.ShouldTrade {
		t.Fatalf("expected reject, ev %s", dec.Breakdown.EVTL)
	}
	if !dec.RecommendedSizeTL.IsZero() {
		t.Errorf("rejected decision carries size %s", dec.RecommendedSizeTL)
	}
	if !dec.SizeMultiplier.IsZero() {
		t.Errorf("rejected decision carries multiplier %s", dec.SizeMultiplier)
	}
	if !dec.Breakdown.EVTL.IsNegative() {
		t.Errorf("ev = %s, want negative with fees exceeding edge", dec.Breakdown.EVTL)
	}
}

func TestShouldTradeRejectsOnZeroSpread(t *testing.T) {
	g := testGate()

	dec := g.ShouldTrade(Inputs{
		SizeTL:        d(1000),
		FeeBps:        d(10),
		MakerFillRate: 0.9,
		DepthRatio:    1.0,
		LatencyMs:     10,
	})

	if dec.ShouldTrade {
		t.Error("no edge should never trade")
	}
	if !dec.Breakdown.EVTL.IsNegative() {
		t.Errorf("ev = %s, want negative (pure cost)", dec.Breakdown.EVTL)
	}
}

func TestShouldTradeEnforcesPFillFloor(t *testing.T) {
	// Raise the floor above what the inputs can produce; EV alone is not
	// sufficient for acceptance.
	g := NewGate(cost.NewModel(decimal.Zero, decimal.Zero), Params{MinPFill: 0.9})

	dec := g.ShouldTrade(Inputs{
		SpreadBps:     d(60),
		SizeTL:        d(10000),
		FeeBps:        d(5),
		MakerFillRate: 0.9,
		DepthRatio:    1.0,
		LatencyMs:     20,
	})

	if dec.ShouldTrade {
		t.Errorf("p=%s below floor 0.9 must reject regardless of ev %s",
			dec.Breakdown.PFill, dec.Breakdown.EVTL)
	}
}

func TestShouldTradeClampsToMaxPosition(t *testing.T) {
	g := testGate()

	dec := g.ShouldTrade(Inputs{
		SpreadBps:     d(100),
		SizeTL:        d(50000),
		FeeBps:        d(5),
		MakerFillRate: 0.9,
		DepthRatio:    1.0,
		LatencyMs:     10,
	})

	if !dec.ShouldTrade {
		t.Fatalf("expected accept, ev %s", dec.Breakdown.EVTL)
	}
	if !dec.RecommendedSizeTL.Equal(DefaultMaxPositionTL) {
		t.Errorf("recommended = %s, want clamped to %s", dec.RecommendedSizeTL, DefaultMaxPositionTL)
	}
}

func TestShouldTradeSizeAlwaysBounded(t *testing.T) {
	g := testGate()

	for _, spread := range []float64{0, 20, 40, 80, 200} {
		for _, size := range []float64{500, 5000, 20000, 80000} {
			dec := g.ShouldTrade(Inputs{
				SpreadBps:     d(spread),
				SizeTL:        d(size),
				FeeBps:        d(10),
				MakerFillRate: 0.8,
				DepthRatio:    1.0,
				LatencyMs:     30,
			})
			if !dec.ShouldTrade {
				continue
			}
			if !dec.RecommendedSizeTL.IsPositive() {
				t.Errorf("accepted with non-positive size at spread=%v size=%v", spread, size)
			}
			if dec.RecommendedSizeTL.GreaterThan(DefaultMaxPositionTL) {
				t.Errorf("size %s exceeds cap at spread=%v size=%v", dec.RecommendedSizeTL, spread, size)
			}
		}
	}
}

func TestRecordFillResultFeedsSlippageBudget(t *testing.T) {
	g := testGate()
	in := Inputs{
		SpreadBps:     d(60),
		SizeTL:        d(10000),
		FeeBps:        d(5),
		MakerFillRate: 0.9,
		DepthRatio:    1.0,
		LatencyMs:     20,
	}

	before, _ := g.CalculateEV(in)

	// A run of badly slipped fills should widen the budget and depress EV.
	slip := d(100)
	for i := 0; i < 20; i++ {
		g.RecordFillResult(true, &slip)
	}

	if !g.SlippageP95().Equal(slip) {
		t.Errorf("p95 = %s, want 100", g.SlippageP95())
	}

	after, _ := g.CalculateEV(in)
	if !after.LessThan(before) {
		t.Errorf("ev did not drop after bad fills: before=%s after=%s", before, after)
	}
}

func TestFillHistoryBoundedFIFO(t *testing.T) {
	g := testGate()

	for i := 0; i < HistoryCapacity+5; i++ {
		g.RecordFillResult(i%2 == 0, nil)
	}
	if got := g.HistorySize(); got != HistoryCapacity {
		t.Errorf("history size = %d, want %d", got, HistoryCapacity)
	}
}

func TestRealizedFillRate(t *testing.T) {
	g := testGate()

	if got := g.RealizedFillRate(); got != 0.5 {
		t.Errorf("empty history fill rate = %v, want neutral 0.5", got)
	}

	g.RecordFillResult(true, nil)
	g.RecordFillResult(true, nil)
	g.RecordFillResult(true, nil)
	g.RecordFillResult(false, nil)

	if got := g.RealizedFillRate(); got != 0.75 {
		t.Errorf("fill rate = %v, want 0.75", got)
	}
}

func TestSlippageP95IgnoresUnfilled(t *testing.T) {
	g := testGate()

	slip := d(40)
	g.RecordFillResult(false, &slip)
	g.RecordFillResult(true, nil)

	if !g.SlippageP95().IsZero() {
		t.Errorf("p95 = %s, want 0 with no filled slippage observations", g.SlippageP95())
	}
}

func TestNewGateDefaultsParams(t *testing.T) {
	g := NewGate(cost.NewModel(decimal.Zero, decimal.Zero), Params{
		MinEVTL:       d(-5),
		MaxPositionTL: decimal.Zero,
		MinPFill:      1.7,
	})

	if !g.params.MinEVTL.Equal(DefaultMinEVTL) {
		t.Errorf("min ev = %s, want default", g.params.MinEVTL)
	}
	if !g.params.MaxPositionTL.Equal(DefaultMaxPositionTL) {
		t.Errorf("max position = %s, want default", g.params.MaxPositionTL)
	}
	if g.params.MinPFill != DefaultMinPFill {
		t.Errorf("min pfill = %v, want default", g.params.MinPFill)
	}
}
