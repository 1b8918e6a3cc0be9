package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okquant/costsim/internal/domain"
)

// ResultStore implements domain.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a ResultStore backed by the given connection pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

var _ domain.ResultStore = (*ResultStore)(nil)

const simulationInsert = `
	INSERT INTO simulations (
		id, symbol, side, order_type, quantity_quote, limit_price, latency_ms,
		maker_fee_pct, taker_fee_pct,
		executed_base, executed_quote, average_price,
		slippage_pct, impact_pct, fee_paid, execution_type, warnings,
		best_bid, best_ask, mid_price, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9,
		$10, $11, $12,
		$13, $14, $15, $16, $17,
		$18, $19, $20, $21
	) ON CONFLICT (id) DO NOTHING`

const simulationSelectCols = `id, symbol, side, order_type, quantity_quote,
	limit_price, latency_ms, maker_fee_pct, taker_fee_pct,
	executed_base, executed_quote, average_price,
	slippage_pct, impact_pct, fee_paid, execution_type, warnings,
	best_bid, best_ask, mid_price, created_at`

func insertArgs(rec domain.SimulationRecord) []any {
	var limitPrice *float64
	if rec.Order.LimitPrice > 0 {
		limitPrice = &rec.Order.LimitPrice
	}
	var makerPct, takerPct *float64
	if rec.Order.Fees != nil {
		makerPct = &rec.Order.Fees.MakerPct
		takerPct = &rec.Order.Fees.TakerPct
	}
	return []any{
		rec.ID, rec.Order.Symbol, string(rec.Order.Side), string(rec.Order.Type),
		rec.Order.QuantityQuote, limitPrice, rec.Order.LatencyMs,
		makerPct, takerPct,
		rec.Result.ExecutedBase, rec.Result.ExecutedQuote, rec.Result.AveragePrice,
		rec.Result.SlippagePct, rec.Result.ImpactPct, rec.Result.FeePaid,
		string(rec.Result.Type), rec.Result.Warnings,
		rec.BestBid, rec.BestAsk, rec.MidPrice, rec.CreatedAt,
	}
}

func scanSimulation(row pgx.Row) (domain.SimulationRecord, error) {
	var (
		rec        domain.SimulationRecord
		side       string
		orderType  string
		execType   string
		limitPrice *float64
		makerPct   *float64
		takerPct   *float64
	)
	err := row.Scan(
		&rec.ID, &rec.Order.Symbol, &side, &orderType, &rec.Order.QuantityQuote,
		&limitPrice, &rec.Order.LatencyMs, &makerPct, &takerPct,
		&rec.Result.ExecutedBase, &rec.Result.ExecutedQuote, &rec.Result.AveragePrice,
		&rec.Result.SlippagePct, &rec.Result.ImpactPct, &rec.Result.FeePaid,
		&execType, &rec.Result.Warnings,
		&rec.BestBid, &rec.BestAsk, &rec.MidPrice, &rec.CreatedAt,
	)
	if err != nil {
		return domain.SimulationRecord{}, err
	}
	rec.Order.Side = domain.OrderSide(side)
	rec.Order.Type = domain.OrderType(orderType)
	rec.Result.Type = domain.ExecutionType(execType)
	if limitPrice != nil {
		rec.Order.LimitPrice = *limitPrice
	}
	if makerPct != nil && takerPct != nil {
		rec.Order.Fees = &domain.FeeProfile{MakerPct: *makerPct, TakerPct: *takerPct}
	}
	return rec, nil
}

func scanSimulationRows(rows pgx.Rows) ([]domain.SimulationRecord, error) {
	var recs []domain.SimulationRecord
	for rows.Next() {
		rec, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Insert persists a single simulation record.
func (s *ResultStore) Insert(ctx context.Context, rec domain.SimulationRecord) error {
	if _, err := s.pool.Exec(ctx, simulationInsert, insertArgs(rec)...); err != nil {
		return fmt.Errorf("postgres: insert simulation %s: %w", rec.ID, err)
	}
	return nil
}

// InsertBatch inserts multiple records efficiently using pgx Batch.
// Duplicate ids are silently skipped via ON CONFLICT DO NOTHING.
func (s *ResultStore) InsertBatch(ctx context.Context, recs []domain.SimulationRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(simulationInsert, insertArgs(rec)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert simulation batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID fetches one record. It returns domain.ErrNotFound when the id
// does not exist.
func (s *ResultStore) GetByID(ctx context.Context, id string) (domain.SimulationRecord, error) {
	query := `SELECT ` + simulationSelectCols + ` FROM simulations WHERE id = $1`
	rec, err := scanSimulation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SimulationRecord{}, domain.ErrNotFound
		}
		return domain.SimulationRecord{}, fmt.Errorf("postgres: get simulation %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first, optionally filtered by symbol, with
// pagination and time filtering via opts.
func (s *ResultStore) List(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.SimulationRecord, error) {
	query := `SELECT ` + simulationSelectCols + ` FROM simulations`
	var args []any
	var conds []string
	argIdx := 1

	if symbol != "" {
		conds = append(conds, fmt.Sprintf("symbol = $%d", argIdx))
		args = append(args, symbol)
		argIdx++
	}
	if opts.Since != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *opts.Until)
		argIdx++
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list simulations: %w", err)
	}
	defer rows.Close()

	recs, err := scanSimulationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan simulations: %w", err)
	}
	return recs, nil
}

// Count returns the total number of stored records.
func (s *ResultStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM simulations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count simulations: %w", err)
	}
	return n, nil
}

// ListBefore returns all records created strictly before the given time,
// oldest first, for archiving.
func (s *ResultStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SimulationRecord, error) {
	query := `SELECT ` + simulationSelectCols + ` FROM simulations WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list simulations before: %w", err)
	}
	defer rows.Close()
	return scanSimulationRows(rows)
}

// DeleteBefore removes records created before the given time and returns
// the number deleted.
func (s *ResultStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM simulations WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete simulations before: %w", err)
	}
	return tag.RowsAffected(), nil
}
