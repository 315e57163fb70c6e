package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeforge/poloniex-connector/internal/schema"
)

func TestOrderStoreNilPool(t *testing.T) {
	store := NewOrderStore(nil)
	ctx := context.Background()
	order := schema.Order{
		ID:       "local-1",
		Account:  "primary",
		Market:   "BTC_USD",
		Side:     schema.SideBid,
		Price:    decimal.RequireFromString("100"),
		Quantity: decimal.RequireFromString("0.5"),
		State:    schema.OrderStatePending,
	}
	if err := store.InsertOrder(ctx, order); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if err := store.UpdateOrderState(ctx, schema.OrderUpdate{ID: "local-1", State: schema.OrderStateClosed}); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if _, err := store.GetOrderByID(ctx, "local-1"); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if _, err := store.GetOrderByRef(ctx, "poloniex|12345"); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if _, err := store.ListActiveOrders(ctx, "primary"); err == nil {
		t.Fatalf("expected error when pool nil")
	}
}

func TestTradeStoreNilPool(t *testing.T) {
	store := NewTradeStore(nil)
	ctx := context.Background()
	trade := schema.Trade{
		TradeID:  "poloniex|987",
		Exchange: "poloniex",
		Market:   "BTC_USD",
		Side:     schema.SideAsk,
		Quantity: decimal.RequireFromString("1"),
		Price:    decimal.RequireFromString("100"),
		Fee:      decimal.RequireFromString("0.2"),
		FeeSide:  schema.FeeSideQuote,
		Time:     time.Now(),
	}
	if err := store.InsertTrade(ctx, trade); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if _, err := store.TradeExists(ctx, "poloniex|987"); err == nil {
		t.Fatalf("expected error when pool nil")
	}
}

func TestLedgerStoreNilPool(t *testing.T) {
	store := NewLedgerStore(nil)
	ctx := context.Background()
	entry := schema.LedgerEntry{
		RefID:     "poloniex|txid-1",
		Kind:      schema.LedgerCredit,
		Exchange:  "poloniex",
		Account:   "primary",
		Commodity: "BTC",
		Amount:    decimal.RequireFromString("0.25"),
		Time:      time.Now(),
	}
	if err := store.InsertEntry(ctx, entry); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if _, err := store.EntryExists(ctx, "poloniex|txid-1"); err == nil {
		t.Fatalf("expected error when pool nil")
	}
}

func TestBalanceStoreNilPool(t *testing.T) {
	store := NewBalanceStore(nil)
	ctx := context.Background()
	balance := schema.Balance{
		Account:   "primary",
		Commodity: "USD",
		Total:     decimal.RequireFromString("10"),
		Available: decimal.RequireFromString("8"),
	}
	if err := store.UpsertBalance(ctx, balance); err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if _, err := store.ListBalances(ctx, "primary"); err == nil {
		t.Fatalf("expected error when pool nil")
	}
}

func TestStoreWithTransactionNilPool(t *testing.T) {
	store := New(nil)
	err := store.WithTransaction(context.Background(), func(context.Context, schema.MirrorTx) error {
		return nil
	})
	if err == nil {
		t.Fatalf("expected error when pool nil")
	}
	if err := store.WithTransaction(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}

func TestOrderStoreValidatesBeforeExec(t *testing.T) {
	store := NewOrderStore(nil)
	ctx := context.Background()
	update := schema.OrderUpdate{ID: "", State: schema.OrderStateClosed}
	if err := store.updateStateWith(ctx, nil, update); err == nil {
		t.Fatalf("expected error for missing order id")
	}
	update = schema.OrderUpdate{ID: "local-1", State: "vanished"}
	if err := store.updateStateWith(ctx, nil, update); err == nil {
		t.Fatalf("expected error for unknown state")
	}
	if err := store.setAcceptedWith(ctx, nil, "local-1", schema.OrderRef{Exchange: "tmp", Native: "1"}); err == nil {
		t.Fatalf("expected error for placeholder reference")
	}
	bad := schema.Order{ID: "local-1", Account: "primary", Market: "BTCUSD", Side: schema.SideBid, State: schema.OrderStatePending}
	if err := store.insertWith(ctx, nil, bad); err == nil {
		t.Fatalf("expected error for malformed market")
	}
}
