package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// TradeStore persists immutable trade executions.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore constructs a TradeStore backed by the provided pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const (
	tradeInsertSQL = `
INSERT INTO trades (
    trade_id,
    exchange,
    market,
    side,
    quantity,
    price,
    fee,
    fee_side,
    traded_at,
    created_at
)
VALUES (
    @trade_id,
    @exchange,
    @market,
    @side,
    @quantity,
    @price,
    @fee,
    @fee_side,
    @traded_at,
    NOW()
)
ON CONFLICT (trade_id) DO NOTHING;
`

	tradeExistsSQL = `SELECT EXISTS (SELECT 1 FROM trades WHERE trade_id = $1);`
)

func (s *TradeStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("trade store: nil pool")
	}
	return s.pool, nil
}

func (s *TradeStore) insertWith(ctx context.Context, exec execer, trade schema.Trade) error {
	if strings.TrimSpace(trade.TradeID) == "" {
		return fmt.Errorf("trade store: trade id required")
	}
	if !trade.FeeSide.Valid() {
		return fmt.Errorf("trade store: unknown fee side %q", trade.FeeSide)
	}
	args := pgx.NamedArgs{
		"trade_id":  strings.TrimSpace(trade.TradeID),
		"exchange":  trade.Exchange,
		"market":    trade.Market,
		"side":      string(trade.Side),
		"quantity":  trade.Quantity,
		"price":     trade.Price,
		"fee":       trade.Fee,
		"fee_side":  string(trade.FeeSide),
		"traded_at": trade.Time,
	}
	if _, err := exec.Exec(ctx, tradeInsertSQL, args); err != nil {
		return fmt.Errorf("trade store: insert trade: %w", err)
	}
	return nil
}

// InsertTrade stores one execution record. Duplicate trade ids are ignored.
func (s *TradeStore) InsertTrade(ctx context.Context, trade schema.Trade) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	return s.insertWith(ctx, pool, trade)
}

// TradeExists reports whether a trade id has already been mirrored.
func (s *TradeStore) TradeExists(ctx context.Context, tradeID string) (bool, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := pool.QueryRow(ctx, tradeExistsSQL, strings.TrimSpace(tradeID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("trade store: trade exists: %w", err)
	}
	return exists, nil
}
