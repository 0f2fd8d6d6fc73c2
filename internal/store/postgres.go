package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const decisionColumns = `id, instrument, exchange, should_trade,
	recommended_size_tl::TEXT, size_multiplier::TEXT,
	p_fill::TEXT, edge_tl::TEXT, expected_edge_tl::TEXT,
	fee_cost::TEXT, slippage_cost::TEXT, latency_cost::TEXT,
	total_cost::TEXT, ev_tl::TEXT, ev_bps::TEXT, created_at`

func (s *PostgresStore) InsertDecision(ctx context.Context, d *model.EVDecision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ev_decisions (id, instrument, exchange, should_trade,
			recommended_size_tl, size_multiplier,
			p_fill, edge_tl, expected_edge_tl,
			fee_cost, slippage_cost, latency_cost,
			total_cost, ev_tl, ev_bps, created_at)
		 VALUES ($1, $2, $3, $4,
			$5::NUMERIC, $6::NUMERIC,
			$7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
			$10::NUMERIC, $11::NUMERIC, $12::NUMERIC,
			$13::NUMERIC, $14::NUMERIC, $15::NUMERIC, $16)`,
		d.ID, d.Instrument, d.Exchange, d.ShouldTrade,
		d.RecommendedSizeTL.String(), d.SizeMultiplier.String(),
		d.Breakdown.PFill.String(), d.Breakdown.EdgeTL.String(), d.Breakdown.ExpectedEdgeTL.String(),
		d.Breakdown.FeeCost.String(), d.Breakdown.SlippageCost.String(), d.Breakdown.LatencyCost.String(),
		d.Breakdown.TotalCost.String(), d.Breakdown.EVTL.String(), d.Breakdown.EVBps.String(),
		d.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*model.EVDecision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM ev_decisions WHERE id = $1`, id)

	d, err := scanDecision(row)
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) ListDecisionsByInstrument(ctx context.Context, instrument string) ([]model.EVDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionColumns+`
		 FROM ev_decisions WHERE instrument = $1 ORDER BY created_at DESC`, instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []model.EVDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, *d)
	}
	return decisions, rows.Err()
}

func (s *PostgresStore) InsertFillResult(ctx context.Context, fr *model.FillResult) error {
	var slippage *string
	if fr.SlippageBps != nil {
		v := fr.SlippageBps.String()
		slippage = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fill_results (decision_id, filled, slippage_bps, at)
		 VALUES ($1, $2, $3::NUMERIC, $4)`,
		fr.DecisionID, fr.Filled, slippage, fr.At,
	)
	return err
}

func (s *PostgresStore) ListFillResults(ctx context.Context, decisionID string) ([]model.FillResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT decision_id, filled, slippage_bps::TEXT, at
		 FROM fill_results WHERE decision_id = $1 ORDER BY at`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.FillResult
	for rows.Next() {
		var fr model.FillResult
		var slippage *string
		if err := rows.Scan(&fr.DecisionID, &fr.Filled, &slippage, &fr.At); err != nil {
			return nil, err
		}
		if slippage != nil {
			v, _ := decimal.NewFromString(*slippage)
			fr.SlippageBps = &v
		}
		results = append(results, fr)
	}
	return results, rows.Err()
}

// GetVenueExposures sums open notional per venue: accepted decisions with
// no recorded fill result yet.
func (s *PostgresStore) GetVenueExposures(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.exchange, COALESCE(SUM(d.recommended_size_tl), 0)::TEXT
		 FROM ev_decisions d
		 LEFT JOIN fill_results fr ON fr.decision_id = d.id
		 WHERE d.should_trade AND d.exchange <> '' AND fr.decision_id IS NULL
		 GROUP BY d.exchange`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exposures := make(map[string]decimal.Decimal)
	for rows.Next() {
		var venue, expStr string
		if err := rows.Scan(&venue, &expStr); err != nil {
			return nil, err
		}
		exp, _ := decimal.NewFromString(expStr)
		exposures[venue] = exp
	}
	return exposures, rows.Err()
}

// pgxRow abstracts QueryRow results and Query rows for scanning.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row pgxRow) (*model.EVDecision, error) {
	var d model.EVDecision
	var sizeS, multS, pFillS, edgeS, expEdgeS, feeS, slipS, latS, totalS, evS, evBpsS string

	if err := row.Scan(&d.ID, &d.Instrument, &d.Exchange, &d.ShouldTrade,
		&sizeS, &multS,
		&pFillS, &edgeS, &expEdgeS,
		&feeS, &slipS, &latS,
		&totalS, &evS, &evBpsS, &d.CreatedAt); err != nil {
		return nil, err
	}

	d.RecommendedSizeTL, _ = decimal.NewFromString(sizeS)
	d.SizeMultiplier, _ = decimal.NewFromString(multS)
	d.Breakdown.PFill, _ = decimal.NewFromString(pFillS)
	d.Breakdown.EdgeTL, _ = decimal.NewFromString(edgeS)
	d.Breakdown.ExpectedEdgeTL, _ = decimal.NewFromString(expEdgeS)
	d.Breakdown.FeeCost, _ = decimal.NewFromString(feeS)
	d.Breakdown.SlippageCost, _ = decimal.NewFromString(slipS)
	d.Breakdown.LatencyCost, _ = decimal.NewFromString(latS)
	d.Breakdown.TotalCost, _ = decimal.NewFromString(totalS)
	d.Breakdown.EVTL, _ = decimal.NewFromString(evS)
	d.Breakdown.EVBps, _ = decimal.NewFromString(evBpsS)

	return &d, nil
}
