// Package engine provides the HTTP handlers embedding the arbitrage
// pricing core: EV gate evaluation, order-book pricing, P&L reconciliation,
// fee schedule management, and fill feedback.
//
// All monetary values use shopspring/decimal — never float64 for money.
// The numeric core performs no I/O; this layer owns persistence,
// broadcasting, and exposure limiting around it.
package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/book"
	"github.com/arbx/arb-engine/internal/config"
	"github.com/arbx/arb-engine/internal/cost"
	"github.com/arbx/arb-engine/internal/ev"
	"github.com/arbx/arb-engine/internal/fees"
	"github.com/arbx/arb-engine/internal/metrics"
	"github.com/arbx/arb-engine/internal/model"
	"github.com/arbx/arb-engine/internal/pnl"
	"github.com/arbx/arb-engine/internal/risk"
	"github.com/arbx/arb-engine/internal/store"
	"github.com/arbx/arb-engine/internal/symbol"
)

// Service wires the pricing core to HTTP. One EV gate per instrument:
// each gate owns its own fill history, so symbols recalibrate
// independently.
type Service struct {
	registry   *fees.Registry
	pricer     *book.Pricer
	costs      *cost.Model
	calculator *pnl.Calculator
	limiter    *risk.ExposureLimiter
	store      store.Store
	wsHub      *WSHub // optional WebSocket hub for real-time broadcasts

	gateParams ev.Params
	mu         sync.Mutex
	gates      map[string]*ev.Gate
}

// NewService creates the engine service from a materialized config.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(cfg *config.Config, st store.Store, hub *WSHub) *Service {
	registry := fees.NewRegistry(cfg.Fees, cfg.Taxes)
	costs := cost.NewModel(cfg.EV.SlippageMultiplier, cfg.EV.LatencyPenaltyBps)

	return &Service{
		registry:   registry,
		pricer:     book.NewPricer(registry, cfg.EV.MinSpreadBps, cfg.EV.GatewayFeeTL),
		costs:      costs,
		calculator: pnl.NewCalculator(registry),
		limiter: risk.NewExposureLimiter(
			cfg.Limits.MaxPerVenueTL, cfg.Limits.MaxCorrelatedTL, cfg.Limits.VenuePrefixLen),
		store: st,
		wsHub: hub,
		gateParams: ev.Params{
			MinEVTL:       cfg.EV.MinEVTL,
			MaxPositionTL: cfg.EV.MaxPositionTL,
			MinPFill:      cfg.EV.MinPFill,
		},
		gates: make(map[string]*ev.Gate),
	}
}

// Registry exposes the fee registry for wiring (e.g. startup seeding).
func (s *Service) Registry() *fees.Registry { return s.registry }

// gate returns the per-instrument gate, creating it on first use.
func (s *Service) gate(instrument string) *ev.Gate {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gates[instrument]
	if !ok {
		g = ev.NewGate(s.costs, s.gateParams)
		s.gates[instrument] = g
	}
	return g
}

// --- Request/Response types ---

// EvaluateRequest is the JSON body for POST /evaluate.
// FeeBps is optional: zero resolves the instrument exchange's taker rate
// from the registry.
type EvaluateRequest struct {
	Instrument    string          `json:"instrument"` // ARB-{base}-{quote}-{exchange}
	SpreadBps     decimal.Decimal `json:"spread_bps"`
	SizeTL        decimal.Decimal `json:"size_tl"`
	FeeBps        decimal.Decimal `json:"fee_bps"`
	MakerFillRate float64         `json:"maker_fill_rate"`
	DepthRatio    float64         `json:"depth_ratio"`
	LatencyMs     float64         `json:"latency_ms"`
	VolatilityPct decimal.Decimal `json:"volatility_pct"`
}

// ArbitrageRequest is the JSON body for POST /arbitrage and
// POST /arbitrage/size.
type ArbitrageRequest struct {
	BuyExchange  string                  `json:"buy_exchange"`
	SellExchange string                  `json:"sell_exchange"`
	BookA        model.OrderBookSnapshot `json:"book_a"`
	BookB        model.OrderBookSnapshot `json:"book_b"`
	NotionalUSDT decimal.Decimal         `json:"notional_usdt"`
	FXRate       decimal.Decimal         `json:"fx_rate"`
	MaxSize      decimal.Decimal         `json:"max_size"`
}

// OptimalSizeResponse is the JSON body returned from POST /arbitrage/size.
type OptimalSizeResponse struct {
	Size   decimal.Decimal             `json:"size"`
	Result model.ArbitrageProfitResult `json:"result"`
}

// PriceRequest is the JSON body for POST /price.
type PriceRequest struct {
	Exchange string                  `json:"exchange"`
	Book     model.OrderBookSnapshot `json:"book"`
	Quantity decimal.Decimal         `json:"quantity"`
	Side     model.Side              `json:"side"`
	UseMaker bool                    `json:"use_maker"`
}

// DepthRequest is the JSON body for POST /depth.
type DepthRequest struct {
	Book   model.OrderBookSnapshot `json:"book"`
	Levels int                     `json:"levels"`
}

// PnLRequest is the JSON body for POST /pnl.
type PnLRequest struct {
	GrossPnL decimal.Decimal  `json:"gross_pnl"`
	Legs     []model.TradeLeg `json:"legs"`
	Currency string           `json:"currency"`
}

// ArbitragePnLRequest is the JSON body for POST /pnl/arbitrage.
type ArbitragePnLRequest struct {
	SpreadBps decimal.Decimal `json:"spread_bps"`
	Size      decimal.Decimal `json:"size"`
	ExchangeA string          `json:"exchange_a"`
	ExchangeB string          `json:"exchange_b"`
}

// FillRequest is the JSON body for POST /fills.
type FillRequest struct {
	Instrument  string           `json:"instrument"`
	DecisionID  string           `json:"decision_id"`
	Filled      bool             `json:"filled"`
	SlippageBps *decimal.Decimal `json:"slippage_bps"`
}

// FeeUpdateRequest is the JSON body for PUT /fees/{exchange}.
// With CampaignDiscountBps set, the whole schedule is replaced; without,
// maker/taker are synced and the existing discount is preserved.
type FeeUpdateRequest struct {
	MakerBps            decimal.Decimal  `json:"maker_bps"`
	TakerBps            decimal.Decimal  `json:"taker_bps"`
	CampaignDiscountBps *decimal.Decimal `json:"campaign_discount_bps"`
}

// --- HTTP Handlers ---

// Evaluate handles POST /api/v1/evaluate.
// Runs the EV gate, applies the venue exposure limiter to accepted
// decisions, persists the decision, and broadcasts it.
func (s *Service) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	inst, err := symbol.ParseTicker(req.Instrument)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SizeTL.LessThanOrEqual(decimal.Zero) {
		writeError(w, "size_tl must be positive", http.StatusBadRequest)
		return
	}

	feeBps := req.FeeBps
	if feeBps.LessThanOrEqual(decimal.Zero) {
		feeBps = s.registry.EffectiveFeeBps(inst.Exchange, false)
	}

	start := time.Now()
	decision := s.gate(req.Instrument).ShouldTrade(ev.Inputs{
		SpreadBps:     req.SpreadBps,
		SizeTL:        req.SizeTL,
		FeeBps:        feeBps,
		MakerFillRate: req.MakerFillRate,
		DepthRatio:    req.DepthRatio,
		LatencyMs:     req.LatencyMs,
		VolatilityPct: req.VolatilityPct,
	})
	metrics.EvaluationLatency.Observe(time.Since(start).Seconds())

	decision.ID = uuid.New().String()
	decision.Instrument = req.Instrument
	decision.Exchange = inst.Exchange

	ctx := r.Context()

	// An accepted decision still has to fit the venue's open exposure.
	if decision.ShouldTrade {
		exposures, err := s.store.GetVenueExposures(ctx)
		if err != nil {
			writeError(w, "failed to check exposure limits", http.StatusInternalServerError)
			return
		}
		if err := s.limiter.CheckLimit(inst.Exchange, decision.RecommendedSizeTL, exposures); err != nil {
			metrics.ExposureLimitRejections.Inc()
			slog.Warn("decision blocked by exposure limiter",
				"instrument", req.Instrument,
				"exchange", inst.Exchange,
				"size", decision.RecommendedSizeTL.String(),
				"err", err,
			)
			decision.ShouldTrade = false
			decision.RecommendedSizeTL = decimal.Zero
			decision.SizeMultiplier = decimal.Zero
		}
	}

	if err := s.store.InsertDecision(ctx, &decision); err != nil {
		writeError(w, "failed to record decision", http.StatusInternalServerError)
		return
	}

	outcome := "reject"
	if decision.ShouldTrade {
		outcome = "accept"
	}
	metrics.EvaluationsTotal.WithLabelValues(outcome).Inc()

	slog.Info("ev decision",
		"decision_id", decision.ID,
		"instrument", req.Instrument,
		"should_trade", decision.ShouldTrade,
		"ev_tl", decision.Breakdown.EVTL.String(),
		"p_fill", decision.Breakdown.PFill.String(),
		"recommended_size", decision.RecommendedSizeTL.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:              "ev_decision",
			DecisionID:        decision.ID,
			Instrument:        decision.Instrument,
			Exchange:          decision.Exchange,
			ShouldTrade:       decision.ShouldTrade,
			RecommendedSizeTL: decision.RecommendedSizeTL.String(),
			EVTL:              decision.Breakdown.EVTL.String(),
			PFill:             decision.Breakdown.PFill.String(),
		})
	}

	writeJSON(w, http.StatusOK, decision)
}

// ArbitrageProfit handles POST /api/v1/arbitrage.
func (s *Service) ArbitrageProfit(w http.ResponseWriter, r *http.Request) {
	var req ArbitrageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BuyExchange == "" || req.SellExchange == "" {
		writeError(w, "buy_exchange and sell_exchange are required", http.StatusBadRequest)
		return
	}

	result := s.pricer.ArbitrageProfit(
		req.BuyExchange, req.SellExchange, req.BookA, req.BookB, req.NotionalUSDT, req.FXRate)
	writeJSON(w, http.StatusOK, result)
}

// OptimalSize handles POST /api/v1/arbitrage/size.
func (s *Service) OptimalSize(w http.ResponseWriter, r *http.Request) {
	var req ArbitrageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BuyExchange == "" || req.SellExchange == "" {
		writeError(w, "buy_exchange and sell_exchange are required", http.StatusBadRequest)
		return
	}

	size, result := s.pricer.FindOptimalSize(
		req.BuyExchange, req.SellExchange, req.BookA, req.BookB, req.FXRate, req.MaxSize)
	writeJSON(w, http.StatusOK, OptimalSizeResponse{Size: size, Result: result})
}

// EffectivePrice handles POST /api/v1/price.
func (s *Service) EffectivePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}

	result := s.pricer.EffectivePrice(req.Exchange, req.Book, req.Quantity, req.Side, req.UseMaker)
	writeJSON(w, http.StatusOK, result)
}

// Depth handles POST /api/v1/depth.
func (s *Service) Depth(w http.ResponseWriter, r *http.Request) {
	var req DepthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, book.DepthAnalysis(req.Book, req.Levels))
}

// NetPnL handles POST /api/v1/pnl.
func (s *Service) NetPnL(w http.ResponseWriter, r *http.Request) {
	var req PnLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.calculator.NetPnL(req.GrossPnL, req.Legs, req.Currency))
}

// ArbitrageNetPnL handles POST /api/v1/pnl/arbitrage.
func (s *Service) ArbitrageNetPnL(w http.ResponseWriter, r *http.Request) {
	var req ArbitragePnLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ExchangeA == "" || req.ExchangeB == "" {
		writeError(w, "exchange_a and exchange_b are required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK,
		s.calculator.ArbitrageNetPnL(req.SpreadBps, req.Size, req.ExchangeA, req.ExchangeB))
}

// RecordFill handles POST /api/v1/fills.
// The only call that mutates gate state; safe from any goroutine.
func (s *Service) RecordFill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := symbol.ParseTicker(req.Instrument); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.gate(req.Instrument).RecordFillResult(req.Filled, req.SlippageBps)

	fr := model.FillResult{
		DecisionID:  req.DecisionID,
		Filled:      req.Filled,
		SlippageBps: req.SlippageBps,
		At:          time.Now().UTC(),
	}
	if err := s.store.InsertFillResult(r.Context(), &fr); err != nil {
		writeError(w, "failed to record fill result", http.StatusInternalServerError)
		return
	}

	metrics.FillResultsTotal.WithLabelValues(strconv.FormatBool(req.Filled)).Inc()
	writeJSON(w, http.StatusCreated, fr)
}

// GetDecision handles GET /api/v1/decisions/{decisionID}.
func (s *Service) GetDecision(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	decision, err := s.store.GetDecision(r.Context(), decisionID)
	if err != nil {
		writeError(w, "decision not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// ListDecisions handles GET /api/v1/decisions?instrument=ARB-BTC-TRY-BTCTURK.
func (s *Service) ListDecisions(w http.ResponseWriter, r *http.Request) {
	instrument := r.URL.Query().Get("instrument")
	if _, err := symbol.ParseTicker(instrument); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	decisions, err := s.store.ListDecisionsByInstrument(r.Context(), instrument)
	if err != nil {
		writeError(w, "failed to list decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []model.EVDecision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// GetFees handles GET /api/v1/fees/{exchange}.
func (s *Service) GetFees(w http.ResponseWriter, r *http.Request) {
	exchange := chi.URLParam(r, "exchange")

	schedule, configured := s.registry.Schedule(exchange)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exchange":   exchange,
		"configured": configured,
		"schedule":   schedule,
		"effective": map[string]decimal.Decimal{
			"maker_bps": s.registry.EffectiveFeeBps(exchange, true),
			"taker_bps": s.registry.EffectiveFeeBps(exchange, false),
		},
	})
}

// UpdateFees handles PUT /api/v1/fees/{exchange}.
// Without a campaign discount in the body this is the sync-from-exchange
// merge: maker/taker replaced atomically, discount preserved.
func (s *Service) UpdateFees(w http.ResponseWriter, r *http.Request) {
	exchange := chi.URLParam(r, "exchange")

	var req FeeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MakerBps.IsNegative() || req.TakerBps.IsNegative() {
		writeError(w, "fee rates must be non-negative", http.StatusBadRequest)
		return
	}

	if req.CampaignDiscountBps != nil {
		s.registry.SetSchedule(exchange, fees.FeeSchedule{
			MakerBps:            req.MakerBps,
			TakerBps:            req.TakerBps,
			CampaignDiscountBps: *req.CampaignDiscountBps,
		})
	} else {
		s.registry.SyncFromExchange(exchange, req.MakerBps, req.TakerBps)
	}

	metrics.FeeScheduleSyncs.WithLabelValues(exchange).Inc()
	slog.Info("fee schedule updated",
		"exchange", exchange,
		"maker_bps", req.MakerBps.String(),
		"taker_bps", req.TakerBps.String(),
	)

	schedule, _ := s.registry.Schedule(exchange)
	writeJSON(w, http.StatusOK, schedule)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
