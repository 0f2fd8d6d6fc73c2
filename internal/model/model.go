// Package model defines the core domain types shared across the arbitrage
// pricing engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the direction of an order or trade leg.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderBookLevel is one price level of an order book.
// Price > 0, Size >= 0.
type OrderBookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSnapshot is a point-in-time view of one venue's book.
// Bids are ordered by descending price, asks by ascending price;
// the best level is always index 0. Freshness is the caller's problem.
type OrderBookSnapshot struct {
	Bids []OrderBookLevel `json:"bids"`
	Asks []OrderBookLevel `json:"asks"`
}

// BestBid returns the top-of-book bid price, or zero if the side is empty.
func (s OrderBookSnapshot) BestBid() decimal.Decimal {
	if len(s.Bids) == 0 {
		return decimal.Zero
	}
	return s.Bids[0].Price
}

// BestAsk returns the top-of-book ask price, or zero if the side is empty.
func (s OrderBookSnapshot) BestAsk() decimal.Decimal {
	if len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.Asks[0].Price
}

// EffectivePriceResult is the depth-aware price for filling a quantity on
// one side of one venue's book. AvailableDepth may be less than the
// requested quantity when the book is too thin — a partial fill is data,
// never an error.
type EffectivePriceResult struct {
	Exchange       string          `json:"exchange"`
	Side           Side            `json:"side"`
	RawPrice       decimal.Decimal `json:"raw_price"`
	VWAPPrice      decimal.Decimal `json:"vwap_price"`
	FeePct         decimal.Decimal `json:"fee_pct"`
	SlippageBps    decimal.Decimal `json:"slippage_bps"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	AvailableDepth decimal.Decimal `json:"available_depth"`
}

// ArbitrageProfitResult is the two-leg cross-venue profit estimate:
// buy the base asset on venue A (USDT book), sell on venue B (TL book),
// pay the flat gateway withdrawal fee, convert back through the FX rate.
type ArbitrageProfitResult struct {
	Profitable     bool            `json:"profitable"`
	Reason         string          `json:"reason,omitempty"`
	BTCAmount      decimal.Decimal `json:"btc_amount"`
	BuyPrice       decimal.Decimal `json:"buy_price"`
	SellPrice      decimal.Decimal `json:"sell_price"`
	BuyFeePct      decimal.Decimal `json:"buy_fee_pct"`
	SellFeePct     decimal.Decimal `json:"sell_fee_pct"`
	TLReceived     decimal.Decimal `json:"tl_received"`
	TLAfterGateway decimal.Decimal `json:"tl_after_gateway"`
	USDTFinal      decimal.Decimal `json:"usdt_final"`
	ProfitUSDT     decimal.Decimal `json:"profit_usdt"`
	ProfitPct      decimal.Decimal `json:"profit_pct"`
	SpreadBps      decimal.Decimal `json:"spread_bps"`
	MinSpreadBps   decimal.Decimal `json:"min_spread_bps"`
}

// DepthLevel is one row of a depth analysis: the level itself plus the
// running totals down to it.
type DepthLevel struct {
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	CumVolume decimal.Decimal `json:"cum_volume"`
	CumVWAP   decimal.Decimal `json:"cum_vwap"`
	GapBps    decimal.Decimal `json:"gap_bps"` // distance from the previous level
}

// DepthAnalysis summarizes the first N levels of each side of a book.
type DepthAnalysis struct {
	Bids      []DepthLevel    `json:"bids"`
	Asks      []DepthLevel    `json:"asks"`
	SpreadBps decimal.Decimal `json:"spread_bps"` // top-of-book spread
}

// EVBreakdown itemizes one expected-value computation.
// PFill is clamped to [0.10, 0.95] by the fill probability model.
type EVBreakdown struct {
	PFill          decimal.Decimal `json:"p_fill"`
	EdgeTL         decimal.Decimal `json:"edge_tl"`
	ExpectedEdgeTL decimal.Decimal `json:"expected_edge_tl"`
	FeeCost        decimal.Decimal `json:"fee_cost"`
	SlippageCost   decimal.Decimal `json:"slippage_cost"`
	LatencyCost    decimal.Decimal `json:"latency_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	EVTL           decimal.Decimal `json:"ev_tl"`
	EVBps          decimal.Decimal `json:"ev_bps"`
}

// EVDecision is the gate's verdict on a prospective trade.
// RecommendedSizeTL is 0 on reject and in (0, maxPosition] on accept.
type EVDecision struct {
	ID                string          `json:"id,omitempty"`
	Instrument        string          `json:"instrument,omitempty"`
	Exchange          string          `json:"exchange,omitempty"`
	ShouldTrade       bool            `json:"should_trade"`
	RecommendedSizeTL decimal.Decimal `json:"recommended_size_tl"`
	SizeMultiplier    decimal.Decimal `json:"size_multiplier"`
	Breakdown         EVBreakdown     `json:"breakdown"`
	CreatedAt         time.Time       `json:"created_at,omitempty"`
}

// TradeLeg is one executed side of a multi-leg trade.
type TradeLeg struct {
	Exchange string          `json:"exchange"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	IsMaker  bool            `json:"is_maker"`
}

// Notional returns price * quantity for the leg.
func (l TradeLeg) Notional() decimal.Decimal {
	return l.Price.Mul(l.Quantity)
}

// NetPnLResult reconciles gross P&L down to net after per-exchange fees and
// stacked taxes. The identity netPnL == grossPnL - totalFees - totalTaxes
// holds exactly at decimal precision.
type NetPnLResult struct {
	GrossPnL      decimal.Decimal            `json:"gross_pnl"`
	Fees          map[string]decimal.Decimal `json:"fees"`
	Taxes         map[string]decimal.Decimal `json:"taxes"`
	TotalFees     decimal.Decimal            `json:"total_fees"`
	TotalTaxes    decimal.Decimal            `json:"total_taxes"`
	NetPnL        decimal.Decimal            `json:"net_pnl"`
	FeePercentage decimal.Decimal            `json:"fee_percentage"`
	TaxPercentage decimal.Decimal            `json:"tax_percentage"`
	NetPercentage decimal.Decimal            `json:"net_percentage"`
}

// FillResult is the post-trade feedback record appended to the EV gate's
// rolling history. SlippageBps is nil when the order did not fill.
type FillResult struct {
	DecisionID  string           `json:"decision_id,omitempty"`
	Filled      bool             `json:"filled"`
	SlippageBps *decimal.Decimal `json:"slippage_bps,omitempty"`
	At          time.Time        `json:"at"`
}
