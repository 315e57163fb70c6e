package schema

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderUpdate carries a partial mutation of a mirrored order. Nil fields are
// left unchanged.
type OrderUpdate struct {
	ID       string
	State    OrderState
	Executed *decimal.Decimal
}

// MirrorTx exposes the mirror writes available inside one transaction.
type MirrorTx interface {
	InsertOrder(ctx context.Context, order Order) error
	SetOrderAccepted(ctx context.Context, id string, ref OrderRef) error
	UpdateOrderState(ctx context.Context, update OrderUpdate) error
	InsertTrade(ctx context.Context, trade Trade) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error
	UpsertBalance(ctx context.Context, balance Balance) error
}

// Mirror is the persistence seam the connector reads and writes through.
type Mirror interface {
	GetOrderByID(ctx context.Context, id string) (Order, error)
	GetOrderByRef(ctx context.Context, ref string) (Order, error)
	ListActiveOrders(ctx context.Context, account string) ([]Order, error)
	TradeExists(ctx context.Context, tradeID string) (bool, error)
	LedgerEntryExists(ctx context.Context, refID string) (bool, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	WithTransaction(ctx context.Context, fn func(context.Context, MirrorTx) error) error
}
