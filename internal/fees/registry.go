// Package fees holds per-exchange fee tiers and the Turkish tax schedule,
// and resolves effective fee/tax basis points for the pricing engine.
//
// Schedules are replaced whole on update (never mutated field by field) so
// concurrent readers can never observe a half-updated tier.
// All rates use shopspring/decimal — never float64 for money.
package fees

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Tax kinds, used as keys in NetPnLResult.Taxes.
const (
	TaxBSMV   = "bsmv"   // transaction tax on TL notional
	TaxStamp  = "stamp"  // stamp duty on TL notional
	TaxStopaj = "stopaj" // withholding on realized positive profit only
)

// FeeSchedule is one exchange's fee tier. Effective fee is
// max(0, base - campaign discount); a discount larger than the base fee
// never produces a negative fee.
type FeeSchedule struct {
	MakerBps            decimal.Decimal `json:"maker_bps"`
	TakerBps            decimal.Decimal `json:"taker_bps"`
	CampaignDiscountBps decimal.Decimal `json:"campaign_discount_bps"`
}

// Valid reports whether all rates are non-negative.
func (s FeeSchedule) Valid() bool {
	return !s.MakerBps.IsNegative() && !s.TakerBps.IsNegative() && !s.CampaignDiscountBps.IsNegative()
}

// TaxSchedule is the flat tax block. BSMV and stamp duty apply to every
// notional traded in the taxed currency; stopaj applies only to realized
// positive profit and must never be charged on notional.
type TaxSchedule struct {
	BSMVBps   decimal.Decimal `json:"bsmv_bps"`
	StampBps  decimal.Decimal `json:"stamp_bps"`
	StopajBps decimal.Decimal `json:"stopaj_bps"`
}

// Valid reports whether all rates are non-negative.
func (t TaxSchedule) Valid() bool {
	return !t.BSMVBps.IsNegative() && !t.StampBps.IsNegative() && !t.StopajBps.IsNegative()
}

// NotionalBps returns the combined rate applied to taxed-currency notional
// (BSMV + stamp). Stopaj is excluded: it is profit-conditional and applied
// by the P&L calculator.
func (t TaxSchedule) NotionalBps() decimal.Decimal {
	return t.BSMVBps.Add(t.StampBps)
}

// DefaultSchedule is the fallback fee tier for exchanges with no configured
// schedule, and the substitute for invalid configuration.
func DefaultSchedule() FeeSchedule {
	return FeeSchedule{
		MakerBps:            decimal.NewFromInt(10),
		TakerBps:            decimal.NewFromInt(15),
		CampaignDiscountBps: decimal.Zero,
	}
}

// DefaultTaxes is the fallback Turkish tax schedule: 5 bps BSMV and 2 bps
// stamp duty on TL notional, 10% stopaj withholding on positive profit.
func DefaultTaxes() TaxSchedule {
	return TaxSchedule{
		BSMVBps:   decimal.NewFromInt(5),
		StampBps:  decimal.NewFromInt(2),
		StopajBps: decimal.NewFromInt(1000),
	}
}

// Registry resolves effective fee and tax rates. Safe for concurrent use:
// a short-held RWMutex guards the schedule map, and every update swaps in a
// complete FeeSchedule value.
type Registry struct {
	mu        sync.RWMutex
	schedules map[string]FeeSchedule
	taxes     TaxSchedule
}

// NewRegistry creates a registry from the given per-exchange schedules and
// tax block. Invalid entries (negative rates) degrade to the documented
// defaults rather than failing construction — surfacing the substitution is
// the embedding system's job.
func NewRegistry(schedules map[string]FeeSchedule, taxes TaxSchedule) *Registry {
	clean := make(map[string]FeeSchedule, len(schedules))
	for exchange, s := range schedules {
		if !s.Valid() {
			s = DefaultSchedule()
		}
		clean[exchange] = s
	}
	if !taxes.Valid() {
		taxes = DefaultTaxes()
	}
	return &Registry{schedules: clean, taxes: taxes}
}

// Schedule returns the fee schedule for an exchange, falling back to the
// default schedule for unknown exchanges. The bool reports whether the
// exchange was explicitly configured.
func (r *Registry) Schedule(exchange string) (FeeSchedule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[exchange]
	if !ok {
		return DefaultSchedule(), false
	}
	return s, true
}

// EffectiveFeeBps resolves the fee rate for an exchange and role:
// max(0, base - campaign discount). Never negative.
func (r *Registry) EffectiveFeeBps(exchange string, isMaker bool) decimal.Decimal {
	s, _ := r.Schedule(exchange)

	base := s.TakerBps
	if isMaker {
		base = s.MakerBps
	}
	effective := base.Sub(s.CampaignDiscountBps)
	if effective.IsNegative() {
		return decimal.Zero
	}
	return effective
}

// SetSchedule replaces an exchange's schedule wholesale.
func (r *Registry) SetSchedule(exchange string, s FeeSchedule) {
	if !s.Valid() {
		s = DefaultSchedule()
	}
	r.mu.Lock()
	r.schedules[exchange] = s
	r.mu.Unlock()
}

// SyncFromExchange overwrites an exchange's maker/taker rates with values
// fetched from the venue. The merge contract: both rates replace the old
// ones in one swap, and the campaign discount is preserved unless the
// caller updates it explicitly via SetSchedule.
func (r *Registry) SyncFromExchange(exchange string, makerBps, takerBps decimal.Decimal) {
	if makerBps.IsNegative() || takerBps.IsNegative() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.schedules[exchange]
	if !ok {
		prev = DefaultSchedule()
	}
	r.schedules[exchange] = FeeSchedule{
		MakerBps:            makerBps,
		TakerBps:            takerBps,
		CampaignDiscountBps: prev.CampaignDiscountBps,
	}
}

// Taxes returns the current tax schedule.
func (r *Registry) Taxes() TaxSchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.taxes
}

// SetTaxes replaces the tax schedule wholesale.
func (r *Registry) SetTaxes(t TaxSchedule) {
	if !t.Valid() {
		t = DefaultTaxes()
	}
	r.mu.Lock()
	r.taxes = t
	r.mu.Unlock()
}

// Exchanges returns the configured exchange names.
func (r *Registry) Exchanges() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schedules))
	for name := range r.schedules {
		names = append(names, name)
	}
	return names
}
