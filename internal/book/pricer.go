// Package book implements depth-aware effective pricing over order-book
// snapshots: VWAP fills, fee-adjusted effective prices, two-leg arbitrage
// profit estimation with an FX conversion step, and per-level depth
// analysis.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Insufficient depth is never an error: fills are partial, degenerate books
// price at zero, and a no-opportunity outcome is returned as data with a
// reason string.
package book

import (
	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/fees"
	"github.com/arbx/arb-engine/internal/model"
)

// PriceScale is the number of decimal places for price rounding.
const PriceScale int32 = 8

var (
	bpsFactor  = decimal.NewFromInt(10000)
	oneHundred = decimal.NewFromInt(100)

	// sizeLadder is the fixed candidate set for FindOptimalSize, in quote
	// currency units. A discrete search, intentionally coarse: the profit
	// curve over a static book is piecewise and cheap to probe.
	sizeLadder = []int64{100, 500, 1000, 2000, 5000, 10000}
)

// DefaultMinSpreadBps is the minimum spread for an arbitrage to count as
// profitable when no threshold is configured.
var DefaultMinSpreadBps = decimal.NewFromInt(30)

// Pricer computes effective prices against order-book snapshots, resolving
// fees through the registry. Stateless: snapshots are passed per call.
type Pricer struct {
	registry     *fees.Registry
	minSpreadBps decimal.Decimal
	gatewayFeeTL decimal.Decimal
}

// NewPricer creates a pricer. minSpreadBps <= 0 falls back to the default
// 30 bps threshold; gatewayFeeTL is the flat TL withdrawal fee charged on
// the sell leg's proceeds.
func NewPricer(registry *fees.Registry, minSpreadBps, gatewayFeeTL decimal.Decimal) *Pricer {
	if minSpreadBps.LessThanOrEqual(decimal.Zero) {
		minSpreadBps = DefaultMinSpreadBps
	}
	if gatewayFeeTL.IsNegative() {
		gatewayFeeTL = decimal.Zero
	}
	return &Pricer{
		registry:     registry,
		minSpreadBps: minSpreadBps,
		gatewayFeeTL: gatewayFeeTL,
	}
}

// CalculateVWAP walks levels in book order, accumulating price*size until
// the target quantity is reached or the book runs out. Returns the
// volume-weighted average price and the quantity actually filled; the fill
// is partial when depth is insufficient, never padded with synthetic
// liquidity. filled == 0 implies vwap == 0.
func CalculateVWAP(levels []model.OrderBookLevel, targetQty decimal.Decimal) (vwap, filled decimal.Decimal) {
	if targetQty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero
	}

	notional := decimal.Zero
	for _, lvl := range levels {
		if lvl.Size.LessThanOrEqual(decimal.Zero) || lvl.Price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		remaining := targetQty.Sub(filled)
		take := lvl.Size
		if take.GreaterThan(remaining) {
			take = remaining
		}
		notional = notional.Add(lvl.Price.Mul(take))
		filled = filled.Add(take)

		if filled.GreaterThanOrEqual(targetQty) {
			break
		}
	}

	if filled.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return notional.Div(filled).Round(PriceScale), filled
}

// EffectivePrice computes the depth- and fee-aware price for filling qty on
// one venue. Buys consume asks, sells consume bids. Slippage is reported
// relative to the top-of-book price and sign-flipped for sells so it always
// reads as a cost.
func (p *Pricer) EffectivePrice(exchange string, snapshot model.OrderBookSnapshot, qty decimal.Decimal, side model.Side, useMaker bool) model.EffectivePriceResult {
	levels := snapshot.Asks
	if side == model.SideSell {
		levels = snapshot.Bids
	}

	raw := decimal.Zero
	if len(levels) > 0 {
		raw = levels[0].Price
	}

	vwap, filled := CalculateVWAP(levels, qty)

	slippageBps := decimal.Zero
	if raw.IsPositive() && filled.IsPositive() {
		if side == model.SideBuy {
			slippageBps = vwap.Sub(raw).Div(raw).Mul(bpsFactor)
		} else {
			slippageBps = raw.Sub(vwap).Div(raw).Mul(bpsFactor)
		}
	}

	feeBps := p.registry.EffectiveFeeBps(exchange, useMaker)
	feePct := feeBps.Div(bpsFactor)

	effective := decimal.Zero
	if filled.IsPositive() {
		if side == model.SideBuy {
			effective = vwap.Mul(decimal.NewFromInt(1).Add(feePct))
		} else {
			effective = vwap.Mul(decimal.NewFromInt(1).Sub(feePct))
		}
		effective = effective.Round(PriceScale)
	}

	return model.EffectivePriceResult{
		Exchange:       exchange,
		Side:           side,
		RawPrice:       raw,
		VWAPPrice:      vwap,
		FeePct:         feePct,
		SlippageBps:    slippageBps.Round(4),
		EffectivePrice: effective,
		AvailableDepth: filled,
	}
}

// ArbitrageProfit estimates a two-leg cross-venue round trip: buy the base
// asset on buyExchange's asks with notional USDT (taker fee in), sell the
// resulting quantity on sellExchange's bids for TL (taker fee in), pay the
// flat gateway withdrawal fee, and convert back to USDT through fxRate
// (TL per USDT).
//
// Missing depth on either leg is a designed failure mode: the result
// carries Profitable=false and a Reason, never an error.
func (p *Pricer) ArbitrageProfit(buyExchange, sellExchange string, bookA, bookB model.OrderBookSnapshot, notionalUSDT, fxRate decimal.Decimal) model.ArbitrageProfitResult {
	res := model.ArbitrageProfitResult{MinSpreadBps: p.minSpreadBps}

	if notionalUSDT.LessThanOrEqual(decimal.Zero) {
		res.Reason = "notional must be positive"
		return res
	}
	if fxRate.LessThanOrEqual(decimal.Zero) {
		res.Reason = "fx rate must be positive"
		return res
	}
	if len(bookA.Asks) == 0 {
		res.Reason = "no ask depth on buy venue"
		return res
	}
	if len(bookB.Bids) == 0 {
		res.Reason = "no bid depth on sell venue"
		return res
	}

	// Target quantity at top-of-book; the VWAP walk then prices the real fill.
	targetQty := notionalUSDT.Div(bookA.BestAsk())

	buy := p.EffectivePrice(buyExchange, bookA, targetQty, model.SideBuy, false)
	if buy.AvailableDepth.LessThan(targetQty) {
		res.Reason = "insufficient depth on buy venue"
		return res
	}

	btcAmount := notionalUSDT.Div(buy.EffectivePrice).Round(PriceScale)

	sell := p.EffectivePrice(sellExchange, bookB, btcAmount, model.SideSell, false)
	if sell.AvailableDepth.LessThan(btcAmount) {
		res.Reason = "insufficient depth on sell venue"
		return res
	}

	tlReceived := btcAmount.Mul(sell.EffectivePrice)
	tlAfterGateway := tlReceived.Sub(p.gatewayFeeTL)
	usdtFinal := tlAfterGateway.Div(fxRate)

	profit := usdtFinal.Sub(notionalUSDT)
	profitPct := profit.Div(notionalUSDT).Mul(oneHundred)
	spreadBps := profitPct.Mul(oneHundred)

	res.BTCAmount = btcAmount
	res.BuyPrice = buy.EffectivePrice
	res.SellPrice = sell.EffectivePrice
	res.BuyFeePct = buy.FeePct
	res.SellFeePct = sell.FeePct
	res.TLReceived = tlReceived.Round(2)
	res.TLAfterGateway = tlAfterGateway.Round(2)
	res.USDTFinal = usdtFinal.Round(4)
	res.ProfitUSDT = profit.Round(4)
	res.ProfitPct = profitPct.Round(4)
	res.SpreadBps = spreadBps.Round(2)
	res.Profitable = spreadBps.GreaterThan(p.minSpreadBps)
	if !res.Profitable && res.Reason == "" {
		res.Reason = "spread below minimum threshold"
	}
	return res
}

// FindOptimalSize probes the fixed candidate ladder (capped at maxSize) and
// returns the size maximizing absolute profit among profitable candidates.
// Returns a zero size with Profitable=false when no candidate qualifies.
func (p *Pricer) FindOptimalSize(buyExchange, sellExchange string, bookA, bookB model.OrderBookSnapshot, fxRate, maxSize decimal.Decimal) (decimal.Decimal, model.ArbitrageProfitResult) {
	var candidates []decimal.Decimal
	for _, s := range sizeLadder {
		size := decimal.NewFromInt(s)
		if maxSize.IsPositive() && size.GreaterThan(maxSize) {
			break
		}
		candidates = append(candidates, size)
	}
	if len(candidates) == 0 && maxSize.IsPositive() {
		candidates = append(candidates, maxSize)
	}

	bestSize := decimal.Zero
	best := model.ArbitrageProfitResult{
		Reason:       "no profitable size",
		MinSpreadBps: p.minSpreadBps,
	}
	for _, size := range candidates {
		res := p.ArbitrageProfit(buyExchange, sellExchange, bookA, bookB, size, fxRate)
		if !res.Profitable {
			continue
		}
		if !best.Profitable || res.ProfitUSDT.GreaterThan(best.ProfitUSDT) {
			best = res
			bestSize = size
		}
	}
	return bestSize, best
}

// DepthAnalysis summarizes the first N levels of each side: cumulative
// volume, running VWAP, and the bps gap from the previous level, plus the
// top-of-book spread in bps (measured against the mid price).
func DepthAnalysis(snapshot model.OrderBookSnapshot, levels int) model.DepthAnalysis {
	if levels <= 0 {
		levels = 10
	}

	analysis := model.DepthAnalysis{
		Bids: analyzeSide(snapshot.Bids, levels),
		Asks: analyzeSide(snapshot.Asks, levels),
	}

	bid, ask := snapshot.BestBid(), snapshot.BestAsk()
	if bid.IsPositive() && ask.IsPositive() {
		mid := bid.Add(ask).Div(decimal.NewFromInt(2))
		if mid.IsPositive() {
			analysis.SpreadBps = ask.Sub(bid).Div(mid).Mul(bpsFactor).Round(4)
		}
	}
	return analysis
}

func analyzeSide(levels []model.OrderBookLevel, n int) []model.DepthLevel {
	if len(levels) < n {
		n = len(levels)
	}

	out := make([]model.DepthLevel, 0, n)
	cumVolume := decimal.Zero
	cumNotional := decimal.Zero
	prevPrice := decimal.Zero

	for i := 0; i < n; i++ {
		lvl := levels[i]
		cumVolume = cumVolume.Add(lvl.Size)
		cumNotional = cumNotional.Add(lvl.Price.Mul(lvl.Size))

		cumVWAP := decimal.Zero
		if cumVolume.IsPositive() {
			cumVWAP = cumNotional.Div(cumVolume).Round(PriceScale)
		}

		gapBps := decimal.Zero
		if i > 0 && prevPrice.IsPositive() {
			gapBps = lvl.Price.Sub(prevPrice).Abs().Div(prevPrice).Mul(bpsFactor).Round(4)
		}
		prevPrice = lvl.Price

		out = append(out, model.DepthLevel{
			Price:     lvl.Price,
			Size:      lvl.Size,
			CumVolume: cumVolume,
			CumVWAP:   cumVWAP,
			GapBps:    gapBps,
		})
	}
	return out
}
