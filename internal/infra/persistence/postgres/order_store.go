package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// OrderStore persists the order lifecycle mirror.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore constructs an OrderStore backed by the provided pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const (
	orderInsertSQL = `
INSERT INTO orders (
    id,
    account,
    market,
    side,
    price,
    quantity,
    executed,
    state,
    order_ref,
    expire_at,
    created_at,
    updated_at
)
VALUES (
    @id,
    @account,
    @market,
    @side,
    @price,
    @quantity,
    @executed,
    @state,
    @order_ref,
    @expire_at,
    NOW(),
    NOW()
)
ON CONFLICT (id) DO NOTHING;
`

	orderSetAcceptedSQL = `
UPDATE orders
SET order_ref = @order_ref,
    state = @state,
    updated_at = NOW()
WHERE id = @id;
`

	orderUpdateStateSQL = `
UPDATE orders
SET state = @state,
    executed = COALESCE(@executed, executed),
    updated_at = NOW()
WHERE id = @id;
`

	orderSelectBase = `
SELECT
    id,
    account,
    market,
    side,
    price::text,
    quantity::text,
    executed::text,
    state,
    order_ref,
    expire_at,
    created_at,
    updated_at
FROM orders
`
)

func (s *OrderStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("order store: nil pool")
	}
	return s.pool, nil
}

func (s *OrderStore) insertWith(ctx context.Context, exec execer, order schema.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"id":        strings.TrimSpace(order.ID),
		"account":   strings.TrimSpace(order.Account),
		"market":    order.Market,
		"side":      string(order.Side),
		"price":     order.Price,
		"quantity":  order.Quantity,
		"executed":  order.Executed,
		"state":     string(order.State),
		"order_ref": nullableString(order.Ref.String()),
		"expire_at": nullableTime(order.ExpireAt),
	}
	if _, err := exec.Exec(ctx, orderInsertSQL, args); err != nil {
		return fmt.Errorf("order store: insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) setAcceptedWith(ctx context.Context, exec execer, id string, ref schema.OrderRef) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("order store: order id required")
	}
	if ref.IsZero() || ref.Placeholder() {
		return fmt.Errorf("order store: accepted order needs an exchange reference")
	}
	args := pgx.NamedArgs{
		"id":        strings.TrimSpace(id),
		"order_ref": ref.String(),
		"state":     string(schema.OrderStateOpen),
	}
	tag, err := exec.Exec(ctx, orderSetAcceptedSQL, args)
	if err != nil {
		return fmt.Errorf("order store: accept order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order store: accept order: no order with id %q", id)
	}
	return nil
}

func (s *OrderStore) updateStateWith(ctx context.Context, exec execer, update schema.OrderUpdate) error {
	if strings.TrimSpace(update.ID) == "" {
		return fmt.Errorf("order store: order id required")
	}
	if !update.State.Valid() {
		return fmt.Errorf("order store: unknown state %q", update.State)
	}
	args := pgx.NamedArgs{
		"id":       strings.TrimSpace(update.ID),
		"state":    string(update.State),
		"executed": nullableDecimal(update.Executed),
	}
	if _, err := exec.Exec(ctx, orderUpdateStateSQL, args); err != nil {
		return fmt.Errorf("order store: update order: %w", err)
	}
	return nil
}

// InsertOrder stores a new mirrored order outside of a transaction.
func (s *OrderStore) InsertOrder(ctx context.Context, order schema.Order) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	return s.insertWith(ctx, pool, order)
}

// UpdateOrderState applies a lifecycle transition.
func (s *OrderStore) UpdateOrderState(ctx context.Context, update schema.OrderUpdate) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	return s.updateStateWith(ctx, pool, update)
}

// GetOrderByID retrieves one order by its local identity.
func (s *OrderStore) GetOrderByID(ctx context.Context, id string) (schema.Order, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return schema.Order{}, err
	}
	row := pool.QueryRow(ctx, orderSelectBase+" WHERE id = $1", strings.TrimSpace(id))
	return scanOrder(row)
}

// GetOrderByRef retrieves one order by its composite exchange reference.
func (s *OrderStore) GetOrderByRef(ctx context.Context, ref string) (schema.Order, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return schema.Order{}, err
	}
	row := pool.QueryRow(ctx, orderSelectBase+" WHERE order_ref = $1", strings.TrimSpace(ref))
	return scanOrder(row)
}

// ListActiveOrders retrieves every non-terminal order for the account.
func (s *OrderStore) ListActiveOrders(ctx context.Context, account string) ([]schema.Order, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	states := []string{string(schema.OrderStatePending), string(schema.OrderStateOpen)}
	rows, err := pool.Query(ctx, orderSelectBase+" WHERE account = $1 AND state = ANY($2) ORDER BY created_at", strings.TrimSpace(account), states)
	if err != nil {
		return nil, fmt.Errorf("order store: list active orders: %w", err)
	}
	defer rows.Close()

	var orders []schema.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order store: iterate orders: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (schema.Order, error) {
	var (
		id        string
		account   string
		market    string
		side      string
		price     string
		quantity  string
		executed  string
		state     string
		refValue  sql.NullString
		expireAt  pgtype.Timestamptz
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&id,
		&account,
		&market,
		&side,
		&price,
		&quantity,
		&executed,
		&state,
		&refValue,
		&expireAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schema.Order{}, fmt.Errorf("order store: order not found: %w", err)
		}
		return schema.Order{}, fmt.Errorf("order store: scan order: %w", err)
	}
	order := schema.Order{
		ID:        id,
		Account:   account,
		Market:    market,
		Side:      schema.Side(side),
		State:     schema.OrderState(state),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	var err error
	if order.Price, err = decimalFromText(price); err != nil {
		return schema.Order{}, fmt.Errorf("order store: %w", err)
	}
	if order.Quantity, err = decimalFromText(quantity); err != nil {
		return schema.Order{}, fmt.Errorf("order store: %w", err)
	}
	if order.Executed, err = decimalFromText(executed); err != nil {
		return schema.Order{}, fmt.Errorf("order store: %w", err)
	}
	if refValue.Valid {
		order.Ref = schema.ParseOrderRef(refValue.String)
	}
	if expireAt.Valid {
		order.ExpireAt = expireAt.Time
	}
	return order, nil
}

func nullableString(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value
}

func nullableDecimal(ptr *decimal.Decimal) any {
	if ptr == nil {
		return nil
	}
	return *ptr
}
