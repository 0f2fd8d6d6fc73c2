// Package pnl reconciles gross trade P&L down to net: per-exchange fees,
// stacked Turkish taxes (BSMV, stamp duty on notional; stopaj on positive
// profit only), and percentage breakdowns.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pnl

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/fees"
	"github.com/arbx/arb-engine/internal/model"
)

var (
	bpsFactor  = decimal.NewFromInt(10000)
	oneHundred = decimal.NewFromInt(100)
)

// Calculator computes fee and tax charges against the registry's current
// schedules. Stateless: every call reads the registry fresh.
type Calculator struct {
	registry *fees.Registry
}

// NewCalculator creates a calculator backed by the given registry.
func NewCalculator(registry *fees.Registry) *Calculator {
	return &Calculator{registry: registry}
}

// TradeFees returns the fee charge for one notional at the exchange's
// effective rate: notional * effectiveFeeBps / 10000.
func (c *Calculator) TradeFees(exchange string, notional decimal.Decimal, isMaker bool) decimal.Decimal {
	if notional.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return notional.Mul(c.registry.EffectiveFeeBps(exchange, isMaker)).Div(bpsFactor)
}

// NotionalTaxes returns the notional-based taxes {bsmv, stamp} for one
// taxed notional. Stopaj is deliberately absent: it applies to positive
// profit only and is charged once in NetPnL.
func (c *Calculator) NotionalTaxes(notional decimal.Decimal) map[string]decimal.Decimal {
	taxes := map[string]decimal.Decimal{
		fees.TaxBSMV:  decimal.Zero,
		fees.TaxStamp: decimal.Zero,
	}
	if notional.LessThanOrEqual(decimal.Zero) {
		return taxes
	}
	schedule := c.registry.Taxes()
	taxes[fees.TaxBSMV] = notional.Mul(schedule.BSMVBps).Div(bpsFactor)
	taxes[fees.TaxStamp] = notional.Mul(schedule.StampBps).Div(bpsFactor)
	return taxes
}

// legTaxed reports whether a leg's notional is subject to Turkish
// transaction taxes: trades settled in TL, or venues whose name marks them
// as Turkish.
func legTaxed(currency, exchange string) bool {
	return currency == "TL" || strings.Contains(strings.ToLower(exchange), "tr")
}

// NetPnL reconciles a gross P&L across executed legs:
//
//	netPnL = grossPnL - totalFees - totalTaxes
//
// exactly, at decimal precision. Fees accrue per exchange at each leg's
// maker/taker rate; BSMV and stamp duty accrue on each taxed leg's
// notional; stopaj is charged once, on grossPnL, only when grossPnL is
// positive and the settlement currency is TL. Percentage fields are zero
// when grossPnL is zero.
func (c *Calculator) NetPnL(grossPnL decimal.Decimal, legs []model.TradeLeg, currency string) model.NetPnLResult {
	feeByExchange := make(map[string]decimal.Decimal)
	taxes := map[string]decimal.Decimal{
		fees.TaxBSMV:   decimal.Zero,
		fees.TaxStamp:  decimal.Zero,
		fees.TaxStopaj: decimal.Zero,
	}

	totalFees := decimal.Zero
	for _, leg := range legs {
		notional := leg.Notional()
		fee := c.TradeFees(leg.Exchange, notional, leg.IsMaker)
		feeByExchange[leg.Exchange] = feeByExchange[leg.Exchange].Add(fee)
		totalFees = totalFees.Add(fee)

		if legTaxed(currency, leg.Exchange) {
			legTaxes := c.NotionalTaxes(notional)
			taxes[fees.TaxBSMV] = taxes[fees.TaxBSMV].Add(legTaxes[fees.TaxBSMV])
			taxes[fees.TaxStamp] = taxes[fees.TaxStamp].Add(legTaxes[fees.TaxStamp])
		}
	}

	if grossPnL.IsPositive() && currency == "TL" {
		schedule := c.registry.Taxes()
		taxes[fees.TaxStopaj] = grossPnL.Mul(schedule.StopajBps).Div(bpsFactor)
	}

	totalTaxes := decimal.Zero
	for _, v := range taxes {
		totalTaxes = totalTaxes.Add(v)
	}

	net := grossPnL.Sub(totalFees).Sub(totalTaxes)

	feePct := decimal.Zero
	taxPct := decimal.Zero
	netPct := decimal.Zero
	if !grossPnL.IsZero() {
		base := grossPnL.Abs()
		feePct = totalFees.Div(base).Mul(oneHundred).Round(4)
		taxPct = totalTaxes.Div(base).Mul(oneHundred).Round(4)
		netPct = net.Div(base).Mul(oneHundred).Round(4)
	}

	return model.NetPnLResult{
		GrossPnL:      grossPnL,
		Fees:          feeByExchange,
		Taxes:         taxes,
		TotalFees:     totalFees,
		TotalTaxes:    totalTaxes,
		NetPnL:        net,
		FeePercentage: feePct,
		TaxPercentage: taxPct,
		NetPercentage: netPct,
	}
}

// ArbitrageNetPnL specializes the two-leg arbitrage case: a taker buy of
// size notional on exchangeA and a taker sell of the same notional on
// exchangeB, with grossPnL = size * spreadBps / 10000, settled in TL.
func (c *Calculator) ArbitrageNetPnL(spreadBps, size decimal.Decimal, exchangeA, exchangeB string) model.NetPnLResult {
	if size.IsNegative() {
		size = decimal.Zero
	}
	grossPnL := size.Mul(spreadBps).Div(bpsFactor)

	one := decimal.NewFromInt(1)
	legs := []model.TradeLeg{
		{Exchange: exchangeA, Side: model.SideBuy, Price: one, Quantity: size, IsMaker: false},
		{Exchange: exchangeB, Side: model.SideSell, Price: one, Quantity: size, IsMaker: false},
	}
	return c.NetPnL(grossPnL, legs, "TL")
}
