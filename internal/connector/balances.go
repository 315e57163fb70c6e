package connector

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
)

type completeBalance struct {
	Available string `json:"available"`
	OnOrders  string `json:"onOrders"`
	BTCValue  string `json:"btcValue"`
}

type balanceTotals struct {
	available decimal.Decimal
	total     decimal.Decimal
}

// SyncBalances pulls the complete balance table and upserts one row per
// (account, commodity) in a single transaction. Totals include funds locked
// on open orders.
func (c *Connector) SyncBalances(ctx context.Context) error {
	body, err := c.gw.Private(ctx, "returnCompleteBalances", nil)
	if err != nil {
		c.recordPass(ctx, "balances", "error")
		return err
	}
	if perr := poloniex.ParseError(body); perr != nil {
		c.recordPass(ctx, "balances", "error")
		return perr
	}

	var table map[string]completeBalance
	if err := json.Unmarshal(body, &table); err != nil {
		c.recordPass(ctx, "balances", "error")
		return errs.New(poloniex.Exchange, errs.CodeExchange,
			errs.WithMessage("malformed balance table"), errs.WithCause(err))
	}

	totals := make(map[string]balanceTotals, len(table))
	for native, row := range table {
		commodity := poloniex.FormatCommodity(native)
		available, err := poloniex.ParseAmount(row.Available)
		if err != nil {
			c.recordPass(ctx, "balances", "error")
			return err
		}
		onOrders, err := poloniex.ParseAmount(row.OnOrders)
		if err != nil {
			c.recordPass(ctx, "balances", "error")
			return err
		}
		sum := totals[commodity]
		sum.available = sum.available.Add(available)
		sum.total = sum.total.Add(available).Add(onOrders)
		totals[commodity] = sum
	}

	err = c.mirror.WithTransaction(ctx, func(ctx context.Context, tx schema.MirrorTx) error {
		for commodity, sum := range totals {
			balance := schema.Balance{
				Account:   c.account,
				Commodity: commodity,
				Total:     sum.total,
				Available: sum.available,
			}
			if err := tx.UpsertBalance(ctx, balance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("balance sync commit failed", observability.Err(err))
		c.recordPass(ctx, "balances", "error")
		return errs.New(poloniex.Exchange, errs.CodeStore,
			errs.WithMessage("balance upsert"), errs.WithCause(err))
	}

	c.recordPass(ctx, "balances", "ok")
	c.recordRecords(ctx, "balances", len(totals))
	return nil
}
