package connector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// SyncTrades walks the trade history backward from now, deduplicating by
// "{exchange}|{globalTradeID}". With an empty market every pair is covered in
// one call; rescan controls whether the walk continues past the first page.
func (c *Connector) SyncTrades(ctx context.Context, market string, rescan bool) error {
	if market != "" {
		if err := schema.ValidateMarket(market); err != nil {
			return err
		}
	}
	fetch := func(ctx context.Context, windowEnd time.Time) ([]historyRecord, error) {
		return c.fetchTradePage(ctx, market, windowEnd)
	}
	exists := func(ctx context.Context, refID string) (bool, error) {
		return c.mirror.TradeExists(ctx, refID)
	}
	return c.walkHistory(ctx, "trades", rescan, fetch, exists)
}

func (c *Connector) fetchTradePage(ctx context.Context, market string, windowEnd time.Time) ([]historyRecord, error) {
	params := url.Values{}
	if market == "" {
		params.Set("currencyPair", "all")
	} else {
		params.Set("currencyPair", poloniex.UnformatMarket(market))
	}
	params.Set("end", strconv.FormatInt(windowEnd.Unix(), 10))

	body, err := c.gw.Private(ctx, "returnTradeHistory", params)
	if err != nil {
		return nil, err
	}
	if perr := poloniex.ParseError(body); perr != nil {
		return nil, perr
	}

	byMarket := make(map[string][]poloniex.TradeRow)
	if market != "" {
		var rows []poloniex.TradeRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, errs.New(poloniex.Exchange, errs.CodeExchange,
				errs.WithMessage("malformed trade history"), errs.WithCause(err))
		}
		byMarket[market] = rows
	} else {
		var table map[string][]poloniex.TradeRow
		if err := json.Unmarshal(body, &table); err != nil {
			return nil, errs.New(poloniex.Exchange, errs.CodeExchange,
				errs.WithMessage("malformed trade history table"), errs.WithCause(err))
		}
		for native, rows := range table {
			byMarket[poloniex.FormatMarket(native)] = rows
		}
	}

	var records []historyRecord
	for canonical, rows := range byMarket {
		for _, row := range rows {
			rec, err := c.tradeRecord(canonical, row)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *Connector) tradeRecord(market string, row poloniex.TradeRow) (historyRecord, error) {
	ts, err := row.Time()
	if err != nil {
		return historyRecord{}, err
	}
	price, err := poloniex.ParseAmount(row.Rate)
	if err != nil {
		return historyRecord{}, err
	}
	quantity, err := poloniex.ParseAmount(row.Amount)
	if err != nil {
		return historyRecord{}, err
	}
	fee, err := poloniex.ParseAmount(row.Fee)
	if err != nil {
		return historyRecord{}, err
	}

	trade := schema.Trade{
		TradeID:  poloniex.Exchange + "|" + strconv.FormatInt(row.GlobalTradeID, 10),
		Exchange: poloniex.Exchange,
		Market:   market,
		Side:     sideFromNative(row.Type),
		Quantity: quantity,
		Price:    price,
		Fee:      fee,
		FeeSide:  c.feeSide,
		Time:     ts,
	}
	return historyRecord{
		refID: trade.TradeID,
		time:  ts,
		apply: func(ctx context.Context, tx schema.MirrorTx) error {
			return tx.InsertTrade(ctx, trade)
		},
	}, nil
}
