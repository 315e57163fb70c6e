package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// BalanceStore keeps one row per account and commodity pair.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore constructs a BalanceStore backed by the provided pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

const (
	balanceUpsertSQL = `
INSERT INTO balances (
    account,
    commodity,
    total,
    available,
    created_at,
    updated_at
)
VALUES (
    @account,
    @commodity,
    @total,
    @available,
    NOW(),
    NOW()
)
ON CONFLICT (account, commodity) DO UPDATE SET
    total = EXCLUDED.total,
    available = EXCLUDED.available,
    updated_at = NOW();
`

	balanceSelectSQL = `
SELECT
    account,
    commodity,
    total::text,
    available::text,
    updated_at
FROM balances
WHERE account = $1
ORDER BY commodity;
`
)

func (s *BalanceStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("balance store: nil pool")
	}
	return s.pool, nil
}

func (s *BalanceStore) upsertWith(ctx context.Context, exec execer, balance schema.Balance) error {
	if strings.TrimSpace(balance.Account) == "" {
		return fmt.Errorf("balance store: account required")
	}
	if strings.TrimSpace(balance.Commodity) == "" {
		return fmt.Errorf("balance store: commodity required")
	}
	args := pgx.NamedArgs{
		"account":   strings.TrimSpace(balance.Account),
		"commodity": balance.Commodity,
		"total":     balance.Total,
		"available": balance.Available,
	}
	if _, err := exec.Exec(ctx, balanceUpsertSQL, args); err != nil {
		return fmt.Errorf("balance store: upsert balance: %w", err)
	}
	return nil
}

// UpsertBalance records the latest holdings for one commodity.
func (s *BalanceStore) UpsertBalance(ctx context.Context, balance schema.Balance) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	return s.upsertWith(ctx, pool, balance)
}

// ListBalances retrieves the current holdings for an account.
func (s *BalanceStore) ListBalances(ctx context.Context, account string) ([]schema.Balance, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, balanceSelectSQL, strings.TrimSpace(account))
	if err != nil {
		return nil, fmt.Errorf("balance store: list balances: %w", err)
	}
	defer rows.Close()

	var balances []schema.Balance
	for rows.Next() {
		var (
			balance   schema.Balance
			total     string
			available string
			updatedAt time.Time
		)
		if err := rows.Scan(&balance.Account, &balance.Commodity, &total, &available, &updatedAt); err != nil {
			return nil, fmt.Errorf("balance store: scan balance: %w", err)
		}
		if balance.Total, err = decimalFromText(total); err != nil {
			return nil, fmt.Errorf("balance store: %w", err)
		}
		if balance.Available, err = decimalFromText(available); err != nil {
			return nil, fmt.Errorf("balance store: %w", err)
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("balance store: iterate balances: %w", err)
	}
	return balances, nil
}
