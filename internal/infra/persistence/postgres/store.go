// Package postgres persists the local mirror of Poloniex state: orders,
// trades, ledger entries, and balances.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// execer is satisfied by both pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store bundles the PostgreSQL-backed mirror repositories over one pool.
type Store struct {
	pool *pgxpool.Pool

	Orders   *OrderStore
	Trades   *TradeStore
	Ledger   *LedgerStore
	Balances *BalanceStore
}

// New constructs a PostgreSQL mirror store over the provided pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		Orders:   NewOrderStore(pool),
		Trades:   NewTradeStore(pool),
		Ledger:   NewLedgerStore(pool),
		Balances: NewBalanceStore(pool),
	}
}

// mirrorTx implements schema.MirrorTx over one pgx transaction.
type mirrorTx struct {
	tx    pgx.Tx
	store *Store
}

func (t *mirrorTx) InsertOrder(ctx context.Context, order schema.Order) error {
	return t.store.Orders.insertWith(ctx, t.tx, order)
}

func (t *mirrorTx) SetOrderAccepted(ctx context.Context, id string, ref schema.OrderRef) error {
	return t.store.Orders.setAcceptedWith(ctx, t.tx, id, ref)
}

func (t *mirrorTx) UpdateOrderState(ctx context.Context, update schema.OrderUpdate) error {
	return t.store.Orders.updateStateWith(ctx, t.tx, update)
}

func (t *mirrorTx) InsertTrade(ctx context.Context, trade schema.Trade) error {
	return t.store.Trades.insertWith(ctx, t.tx, trade)
}

func (t *mirrorTx) InsertLedgerEntry(ctx context.Context, entry schema.LedgerEntry) error {
	return t.store.Ledger.insertWith(ctx, t.tx, entry)
}

func (t *mirrorTx) UpsertBalance(ctx context.Context, balance schema.Balance) error {
	return t.store.Balances.upsertWith(ctx, t.tx, balance)
}

// GetOrderByID retrieves one order by its local identity.
func (s *Store) GetOrderByID(ctx context.Context, id string) (schema.Order, error) {
	return s.Orders.GetOrderByID(ctx, id)
}

// GetOrderByRef retrieves one order by its composite exchange reference.
func (s *Store) GetOrderByRef(ctx context.Context, ref string) (schema.Order, error) {
	return s.Orders.GetOrderByRef(ctx, ref)
}

// ListActiveOrders retrieves every non-terminal order for the account.
func (s *Store) ListActiveOrders(ctx context.Context, account string) ([]schema.Order, error) {
	return s.Orders.ListActiveOrders(ctx, account)
}

// TradeExists reports whether a trade id has already been mirrored.
func (s *Store) TradeExists(ctx context.Context, tradeID string) (bool, error) {
	return s.Trades.TradeExists(ctx, tradeID)
}

// LedgerEntryExists reports whether a ledger ref id has already been mirrored.
func (s *Store) LedgerEntryExists(ctx context.Context, refID string) (bool, error) {
	return s.Ledger.EntryExists(ctx, refID)
}

// UpsertBalance records the latest holdings for one commodity.
func (s *Store) UpsertBalance(ctx context.Context, balance schema.Balance) error {
	return s.Balances.UpsertBalance(ctx, balance)
}

func (s *Store) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("mirror store: nil pool")
	}
	return s.pool, nil
}

// WithTransaction executes the supplied callback within a database transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(context.Context, schema.MirrorTx) error) error {
	if fn == nil {
		return fmt.Errorf("mirror store: transaction callback required")
	}
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	var txOptions pgx.TxOptions
	txOptions.IsoLevel = pgx.ReadCommitted
	txOptions.AccessMode = pgx.ReadWrite
	txOptions.DeferrableMode = pgx.NotDeferrable

	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("mirror store: begin tx: %w", err)
	}
	wrapped := &mirrorTx{tx: tx, store: s}
	runErr := fn(ctx, wrapped)
	if runErr != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("mirror store: rollback tx: %w (original error: %v)", rbErr, runErr)
		}
		return runErr
	}
	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("mirror store: commit tx: %w", err)
	}
	return nil
}
