package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// LedgerStore persists immutable deposit and withdrawal records.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore constructs a LedgerStore backed by the provided pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const (
	ledgerInsertSQL = `
INSERT INTO ledger_entries (
    ref_id,
    kind,
    exchange,
    account,
    commodity,
    amount,
    address,
    network,
    status,
    occurred_at,
    created_at
)
VALUES (
    @ref_id,
    @kind,
    @exchange,
    @account,
    @commodity,
    @amount,
    @address,
    @network,
    @status,
    @occurred_at,
    NOW()
)
ON CONFLICT (ref_id) DO NOTHING;
`

	ledgerExistsSQL = `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE ref_id = $1);`
)

func (s *LedgerStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("ledger store: nil pool")
	}
	return s.pool, nil
}

func (s *LedgerStore) insertWith(ctx context.Context, exec execer, entry schema.LedgerEntry) error {
	if strings.TrimSpace(entry.RefID) == "" {
		return fmt.Errorf("ledger store: ref id required")
	}
	if !entry.Kind.Valid() {
		return fmt.Errorf("ledger store: unknown kind %q", entry.Kind)
	}
	args := pgx.NamedArgs{
		"ref_id":      strings.TrimSpace(entry.RefID),
		"kind":        string(entry.Kind),
		"exchange":    entry.Exchange,
		"account":     entry.Account,
		"commodity":   entry.Commodity,
		"amount":      entry.Amount,
		"address":     nullableString(entry.Address),
		"network":     nullableString(entry.Network),
		"status":      nullableString(entry.Status),
		"occurred_at": entry.Time,
	}
	if _, err := exec.Exec(ctx, ledgerInsertSQL, args); err != nil {
		return fmt.Errorf("ledger store: insert entry: %w", err)
	}
	return nil
}

// InsertEntry stores one ledger record. Duplicate ref ids are ignored.
func (s *LedgerStore) InsertEntry(ctx context.Context, entry schema.LedgerEntry) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	return s.insertWith(ctx, pool, entry)
}

// EntryExists reports whether a ledger ref id has already been mirrored.
func (s *LedgerStore) EntryExists(ctx context.Context, refID string) (bool, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := pool.QueryRow(ctx, ledgerExistsSQL, strings.TrimSpace(refID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("ledger store: entry exists: %w", err)
	}
	return exists, nil
}
