package engine_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/config"
	"github.com/arbx/arb-engine/internal/engine"
	"github.com/arbx/arb-engine/internal/fees"
	"github.com/arbx/arb-engine/internal/model"
	"github.com/arbx/arb-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	svc    *engine.Service
	store  *store.MemoryStore
	router *chi.Mux
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}

	st := store.NewMemoryStore()
	svc := engine.NewService(cfg, st, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/evaluate", svc.Evaluate)
		r.Post("/fills", svc.RecordFill)
		r.Get("/decisions", svc.ListDecisions)
		r.Get("/decisions/{decisionID}", svc.GetDecision)
		r.Post("/price", svc.EffectivePrice)
		r.Post("/depth", svc.Depth)
		r.Post("/arbitrage", svc.ArbitrageProfit)
		r.Post("/arbitrage/size", svc.OptimalSize)
		r.Post("/pnl", svc.NetPnL)
		r.Post("/pnl/arbitrage", svc.ArbitrageNetPnL)
		r.Get("/fees/{exchange}", svc.GetFees)
		r.Put("/fees/{exchange}", svc.UpdateFees)
	})

	return &testEnv{svc: svc, store: st, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func acceptBody() map[string]interface{} {
	return map[string]interface{}{
		"instrument":      "ARB-BTC-TRY-BTCTURK",
		"spread_bps":      60,
		"size_tl":         10000,
		"fee_bps":         5,
		"maker_fill_rate": 0.9,
		"depth_ratio":     1.0,
		"latency_ms":      20,
	}
}

func TestEvaluateAccepts(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var dec model.EVDecision
	decode(t, w, &dec)

	if !dec.ShouldTrade {
		t.Fatalf("expected accept, breakdown %+v", dec.Breakdown)
	}
	if dec.ID == "" {
		t.Error("decision ID missing")
	}
	if dec.Exchange != "btcturk" {
		t.Errorf("exchange = %q, want btcturk", dec.Exchange)
	}
	if !dec.RecommendedSizeTL.Equal(d(15000)) {
		t.Errorf("recommended = %s, want 15000", dec.RecommendedSizeTL)
	}

	// The decision is retrievable afterwards.
	w = env.do(t, http.MethodGet, "/api/v1/decisions/"+dec.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get decision status = %d", w.Code)
	}
}

func TestEvaluateResolvesFeeFromRegistry(t *testing.T) {
	env := newTestEnv(t, nil)

	// Without fee_bps the btcturk effective taker rate (30 bps) applies,
	// doubling the round-trip cost past the edge.
	body := acceptBody()
	delete(body, "fee_bps")

	w := env.do(t, http.MethodPost, "/api/v1/evaluate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var dec model.EVDecision
	decode(t, w, &dec)
	if dec.ShouldTrade {
		t.Errorf("expected reject at registry fee rate, ev %s", dec.Breakdown.EVTL)
	}
	if !dec.Breakdown.FeeCost.Equal(d(60)) {
		t.Errorf("fee cost = %s, want 60 (30 bps round trip)", dec.Breakdown.FeeCost)
	}
}

func TestEvaluateRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	body := acceptBody()
	body["instrument"] = "BTC-TRY"
	if w := env.do(t, http.MethodPost, "/api/v1/evaluate", body); w.Code != http.StatusBadRequest {
		t.Errorf("bad ticker status = %d, want 400", w.Code)
	}

	body = acceptBody()
	body["size_tl"] = 0
	if w := env.do(t, http.MethodPost, "/api/v1/evaluate", body); w.Code != http.StatusBadRequest {
		t.Errorf("zero size status = %d, want 400", w.Code)
	}
}

func TestEvaluateBlockedByExposureLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxPerVenueTL = d(1000)
	env := newTestEnv(t, cfg)

	w := env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var dec model.EVDecision
	decode(t, w, &dec)

	// The gate accepted but the limiter flipped the decision.
	if dec.ShouldTrade {
		t.Error("expected limiter to block the trade")
	}
	if !dec.RecommendedSizeTL.IsZero() {
		t.Errorf("blocked decision carries size %s", dec.RecommendedSizeTL)
	}
	if !dec.Breakdown.EVTL.IsPositive() {
		t.Errorf("ev = %s, want positive (rejection was not the gate's)", dec.Breakdown.EVTL)
	}
}

func TestListDecisions(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody())
	env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody())

	w := env.do(t, http.MethodGet, "/api/v1/decisions?instrument=ARB-BTC-TRY-BTCTURK", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var decisions []model.EVDecision
	decode(t, w, &decisions)
	if len(decisions) != 2 {
		t.Errorf("len = %d, want 2", len(decisions))
	}

	if w := env.do(t, http.MethodGet, "/api/v1/decisions?instrument=garbage", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad instrument status = %d, want 400", w.Code)
	}
}

func TestGetDecisionNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.do(t, http.MethodGet, "/api/v1/decisions/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRecordFill(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/fills", map[string]interface{}{
		"instrument":   "ARB-BTC-TRY-BTCTURK",
		"decision_id":  "d1",
		"filled":       true,
		"slippage_bps": 12.5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var fr model.FillResult
	decode(t, w, &fr)
	if !fr.Filled || fr.SlippageBps == nil || !fr.SlippageBps.Equal(d(12.5)) {
		t.Errorf("fill result = %+v", fr)
	}

	w = env.do(t, http.MethodPost, "/api/v1/fills", map[string]interface{}{
		"instrument": "garbage",
		"filled":     true,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad ticker status = %d, want 400", w.Code)
	}
}

func TestRecordFillSettlesExposure(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxPerVenueTL = d(20000)
	env := newTestEnv(t, cfg)

	var dec model.EVDecision
	decode(t, env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody()), &dec)
	if !dec.ShouldTrade {
		t.Fatal("expected first accept")
	}

	// 15000 open on btcturk: a second accept would breach the 20000 cap.
	var second model.EVDecision
	decode(t, env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody()), &second)
	if second.ShouldTrade {
		t.Fatal("expected limiter block while exposure is open")
	}

	env.do(t, http.MethodPost, "/api/v1/fills", map[string]interface{}{
		"instrument":  "ARB-BTC-TRY-BTCTURK",
		"decision_id": dec.ID,
		"filled":      true,
	})

	// Settled exposure frees the cap.
	var third model.EVDecision
	decode(t, env.do(t, http.MethodPost, "/api/v1/evaluate", acceptBody()), &third)
	if !third.ShouldTrade {
		t.Error("expected accept after exposure settled")
	}
}

func TestGetFees(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/fees/btcturk", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Configured bool                       `json:"configured"`
		Schedule   fees.FeeSchedule           `json:"schedule"`
		Effective  map[string]decimal.Decimal `json:"effective"`
	}
	decode(t, w, &resp)

	if !resp.Configured {
		t.Error("btcturk should be configured")
	}
	if !resp.Effective["taker_bps"].Equal(d(30)) {
		t.Errorf("effective taker = %s, want 30", resp.Effective["taker_bps"])
	}
}

func TestUpdateFeesSyncPreservesDiscount(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/api/v1/fees/btcturk", map[string]interface{}{
		"maker_bps": 18,
		"taker_bps": 32,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var s fees.FeeSchedule
	decode(t, w, &s)
	if !s.MakerBps.Equal(d(18)) || !s.TakerBps.Equal(d(32)) {
		t.Errorf("schedule = %+v, want synced 18/32", s)
	}
	if !s.CampaignDiscountBps.Equal(d(5)) {
		t.Errorf("discount = %s, want 5 preserved", s.CampaignDiscountBps)
	}
}

func TestUpdateFeesExplicitDiscountReplaces(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/api/v1/fees/btcturk", map[string]interface{}{
		"maker_bps":             18,
		"taker_bps":             32,
		"campaign_discount_bps": 0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var s fees.FeeSchedule
	decode(t, w, &s)
	if !s.CampaignDiscountBps.IsZero() {
		t.Errorf("discount = %s, want 0 (explicit replacement)", s.CampaignDiscountBps)
	}
}

func TestUpdateFeesRejectsNegativeRates(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/api/v1/fees/btcturk", map[string]interface{}{
		"maker_bps": -1,
		"taker_bps": 32,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEffectivePriceEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]interface{}{
		"exchange": "binance",
		"book": map[string]interface{}{
			"asks": []map[string]interface{}{
				{"price": 100, "size": 1},
				{"price": 101, "size": 2},
			},
		},
		"quantity": 2.5,
		"side":     "buy",
	}

	w := env.do(t, http.MethodPost, "/api/v1/price", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res model.EffectivePriceResult
	decode(t, w, &res)
	if !res.VWAPPrice.Equal(d(100.6)) {
		t.Errorf("vwap = %s, want 100.6", res.VWAPPrice)
	}
	// binance taker 10 bps on the VWAP.
	if !res.EffectivePrice.Equal(d(100.7006)) {
		t.Errorf("effective = %s, want 100.7006", res.EffectivePrice)
	}

	body["side"] = "hold"
	if w := env.do(t, http.MethodPost, "/api/v1/price", body); w.Code != http.StatusBadRequest {
		t.Errorf("bad side status = %d, want 400", w.Code)
	}
}

func TestArbitrageEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]interface{}{
		"buy_exchange":  "binance",
		"sell_exchange": "btcturk",
		"book_a": map[string]interface{}{
			"asks": []map[string]interface{}{{"price": 50000, "size": 10}},
		},
		"book_b": map[string]interface{}{
			"bids": []map[string]interface{}{{"price": 2100000, "size": 10}},
		},
		"notional_usdt": 1000,
		"fx_rate":       41,
		"max_size":      2000,
	}

	w := env.do(t, http.MethodPost, "/api/v1/arbitrage", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res model.ArbitrageProfitResult
	decode(t, w, &res)
	if !res.Profitable {
		t.Errorf("expected profitable, reason %q", res.Reason)
	}

	w = env.do(t, http.MethodPost, "/api/v1/arbitrage/size", body)
	if w.Code != http.StatusOK {
		t.Fatalf("size status = %d", w.Code)
	}
	var sized struct {
		Size   decimal.Decimal             `json:"size"`
		Result model.ArbitrageProfitResult `json:"result"`
	}
	decode(t, w, &sized)
	if !sized.Size.Equal(d(2000)) {
		t.Errorf("optimal size = %s, want 2000", sized.Size)
	}

	delete(body, "sell_exchange")
	if w := env.do(t, http.MethodPost, "/api/v1/arbitrage", body); w.Code != http.StatusBadRequest {
		t.Errorf("missing exchange status = %d, want 400", w.Code)
	}
}

func TestArbitragePnLEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/pnl/arbitrage", map[string]interface{}{
		"spread_bps": 30,
		"size":       5000,
		"exchange_a": "binance",
		"exchange_b": "btcturk",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var res model.NetPnLResult
	decode(t, w, &res)
	if !res.GrossPnL.Equal(d(15)) {
		t.Errorf("gross = %s, want 15", res.GrossPnL)
	}
	if !res.NetPnL.Equal(d(-13.5)) {
		t.Errorf("net = %s, want -13.5 (fees and taxes exceed edge)", res.NetPnL)
	}
}

func TestNetPnLEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/pnl", map[string]interface{}{
		"gross_pnl": 500,
		"currency":  "TL",
		"legs": []map[string]interface{}{
			{"exchange": "binance", "side": "buy", "price": 1, "quantity": 10000},
			{"exchange": "btcturk", "side": "sell", "price": 1, "quantity": 10000},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var res model.NetPnLResult
	decode(t, w, &res)
	if !res.NetPnL.Equal(d(396)) {
		t.Errorf("net = %s, want 396", res.NetPnL)
	}
}
