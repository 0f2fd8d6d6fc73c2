// Package config loads the engine configuration from YAML and materializes
// it into validated structs. The numeric core never reads files or re-parses
// config at call time: the loader runs once at startup, and later fee
// updates go through the registry's atomic schedule swaps.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/arbx/arb-engine/internal/fees"
)

// EVConfig holds the EV gate and cost model tunables.
type EVConfig struct {
	MinEVTL            decimal.Decimal
	MaxPositionTL      decimal.Decimal
	MinPFill           float64
	LatencyPenaltyBps  decimal.Decimal
	SlippageMultiplier decimal.Decimal
	MinSpreadBps       decimal.Decimal
	GatewayFeeTL       decimal.Decimal
}

// LimitsConfig holds the exposure limiter settings.
type LimitsConfig struct {
	MaxPerVenueTL   decimal.Decimal
	MaxCorrelatedTL decimal.Decimal
	VenuePrefixLen  int
}

// Config is the materialized engine configuration. All monetary and rate
// fields are decimals; the YAML file itself carries plain numbers and is
// converted on load.
type Config struct {
	Fees   map[string]fees.FeeSchedule
	Taxes  fees.TaxSchedule
	EV     EVConfig
	Limits LimitsConfig
}

// rawConfig mirrors the YAML file shape. Rates are plain floats in the
// file; they become decimals during materialization.
type rawConfig struct {
	Fees map[string]struct {
		MakerBps            float64 `yaml:"maker_bps"`
		TakerBps            float64 `yaml:"taker_bps"`
		CampaignDiscountBps float64 `yaml:"campaign_discount_bps"`
	} `yaml:"fees"`
	Taxes struct {
		BSMVBps   float64 `yaml:"bsmv_bps"`
		StampBps  float64 `yaml:"stamp_bps"`
		StopajBps float64 `yaml:"stopaj_bps"`
	} `yaml:"taxes"`
	EV struct {
		MinEVTL            float64 `yaml:"min_ev_tl"`
		MaxPositionTL      float64 `yaml:"max_position_tl"`
		MinPFill           float64 `yaml:"min_pfill"`
		LatencyPenaltyBps  float64 `yaml:"latency_penalty_bps"`
		SlippageMultiplier float64 `yaml:"slippage_multiplier"`
		MinSpreadBps       float64 `yaml:"min_spread_bps"`
		GatewayFeeTL       float64 `yaml:"gateway_fee_tl"`
	} `yaml:"ev"`
	Limits struct {
		MaxPerVenueTL   float64 `yaml:"max_per_venue_tl"`
		MaxCorrelatedTL float64 `yaml:"max_correlated_tl"`
		VenuePrefixLen  int     `yaml:"venue_prefix_len"`
	} `yaml:"limits"`
}

// Default returns the documented fallback configuration: Binance and
// BtcTurk fee tiers at their published public rates, default Turkish
// taxes, and conservative gate/limit settings.
func Default() *Config {
	return &Config{
		Fees: map[string]fees.FeeSchedule{
			"binance": {
				MakerBps:            decimal.NewFromInt(10),
				TakerBps:            decimal.NewFromInt(10),
				CampaignDiscountBps: decimal.Zero,
			},
			"btcturk": {
				MakerBps:            decimal.NewFromInt(20),
				TakerBps:            decimal.NewFromInt(35),
				CampaignDiscountBps: decimal.NewFromInt(5),
			},
		},
		Taxes: fees.DefaultTaxes(),
		EV: EVConfig{
			MinEVTL:            decimal.NewFromInt(1),
			MaxPositionTL:      decimal.NewFromInt(50000),
			MinPFill:           0.25,
			LatencyPenaltyBps:  decimal.NewFromInt(2),
			SlippageMultiplier: decimal.NewFromFloat(1.5),
			MinSpreadBps:       decimal.NewFromInt(30),
			GatewayFeeTL:       decimal.NewFromInt(10),
		},
		Limits: LimitsConfig{
			MaxPerVenueTL:   decimal.NewFromInt(100000),
			MaxCorrelatedTL: decimal.NewFromInt(250000),
			VenuePrefixLen:  6,
		},
	}
}

// Load reads and parses the YAML config at path. Malformed or missing
// config degrades to the validated defaults — the returned error reports
// what went wrong so the caller can surface a warning, but the returned
// Config is always usable.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := raw.materialize()
	cfg.validate()
	return cfg, nil
}

// materialize converts the YAML shape into decimals, starting from the
// defaults so absent sections keep their fallback values. A zero value in
// a numeric field means "not set" and keeps the default.
func (r rawConfig) materialize() *Config {
	cfg := Default()

	for exchange, s := range r.Fees {
		cfg.Fees[exchange] = fees.FeeSchedule{
			MakerBps:            decimal.NewFromFloat(s.MakerBps),
			TakerBps:            decimal.NewFromFloat(s.TakerBps),
			CampaignDiscountBps: decimal.NewFromFloat(s.CampaignDiscountBps),
		}
	}

	if r.Taxes.BSMVBps != 0 || r.Taxes.StampBps != 0 || r.Taxes.StopajBps != 0 {
		cfg.Taxes = fees.TaxSchedule{
			BSMVBps:   decimal.NewFromFloat(r.Taxes.BSMVBps),
			StampBps:  decimal.NewFromFloat(r.Taxes.StampBps),
			StopajBps: decimal.NewFromFloat(r.Taxes.StopajBps),
		}
	}

	if r.EV.MinEVTL != 0 {
		cfg.EV.MinEVTL = decimal.NewFromFloat(r.EV.MinEVTL)
	}
	if r.EV.MaxPositionTL != 0 {
		cfg.EV.MaxPositionTL = decimal.NewFromFloat(r.EV.MaxPositionTL)
	}
	if r.EV.MinPFill != 0 {
		cfg.EV.MinPFill = r.EV.MinPFill
	}
	if r.EV.LatencyPenaltyBps != 0 {
		cfg.EV.LatencyPenaltyBps = decimal.NewFromFloat(r.EV.LatencyPenaltyBps)
	}
	if r.EV.SlippageMultiplier != 0 {
		cfg.EV.SlippageMultiplier = decimal.NewFromFloat(r.EV.SlippageMultiplier)
	}
	if r.EV.MinSpreadBps != 0 {
		cfg.EV.MinSpreadBps = decimal.NewFromFloat(r.EV.MinSpreadBps)
	}
	if r.EV.GatewayFeeTL != 0 {
		cfg.EV.GatewayFeeTL = decimal.NewFromFloat(r.EV.GatewayFeeTL)
	}

	if r.Limits.MaxPerVenueTL != 0 {
		cfg.Limits.MaxPerVenueTL = decimal.NewFromFloat(r.Limits.MaxPerVenueTL)
	}
	if r.Limits.MaxCorrelatedTL != 0 {
		cfg.Limits.MaxCorrelatedTL = decimal.NewFromFloat(r.Limits.MaxCorrelatedTL)
	}
	if r.Limits.VenuePrefixLen != 0 {
		cfg.Limits.VenuePrefixLen = r.Limits.VenuePrefixLen
	}

	return cfg
}

// validate clamps malformed values back to defaults in place. Construction
// never fails on bad config; it degrades.
func (c *Config) validate() {
	def := Default()

	for exchange, s := range c.Fees {
		if !s.Valid() {
			c.Fees[exchange] = fees.DefaultSchedule()
		}
	}
	if !c.Taxes.Valid() {
		c.Taxes = def.Taxes
	}

	if c.EV.MinEVTL.LessThanOrEqual(decimal.Zero) {
		c.EV.MinEVTL = def.EV.MinEVTL
	}
	if c.EV.MaxPositionTL.LessThanOrEqual(decimal.Zero) {
		c.EV.MaxPositionTL = def.EV.MaxPositionTL
	}
	if c.EV.MinPFill <= 0 || c.EV.MinPFill >= 1 {
		c.EV.MinPFill = def.EV.MinPFill
	}
	if c.EV.LatencyPenaltyBps.LessThanOrEqual(decimal.Zero) {
		c.EV.LatencyPenaltyBps = def.EV.LatencyPenaltyBps
	}
	if c.EV.SlippageMultiplier.LessThanOrEqual(decimal.Zero) {
		c.EV.SlippageMultiplier = def.EV.SlippageMultiplier
	}
	if c.EV.MinSpreadBps.LessThanOrEqual(decimal.Zero) {
		c.EV.MinSpreadBps = def.EV.MinSpreadBps
	}
	if c.EV.GatewayFeeTL.IsNegative() {
		c.EV.GatewayFeeTL = def.EV.GatewayFeeTL
	}

	if c.Limits.MaxPerVenueTL.LessThanOrEqual(decimal.Zero) {
		c.Limits.MaxPerVenueTL = def.Limits.MaxPerVenueTL
	}
	if c.Limits.MaxCorrelatedTL.LessThanOrEqual(decimal.Zero) {
		c.Limits.MaxCorrelatedTL = def.Limits.MaxCorrelatedTL
	}
	if c.Limits.VenuePrefixLen < 1 {
		c.Limits.VenuePrefixLen = def.Limits.VenuePrefixLen
	}
}
