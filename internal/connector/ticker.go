package connector

import (
	"context"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
	"github.com/tradeforge/poloniex-connector/internal/snapshot"
)

// SyncTicker fetches the full ticker table, extracts the requested market,
// and publishes a normalized snapshot to the shared cache under
// "{exchange}_{market}_ticker". Cache write only; the durable mirror is not
// touched.
func (c *Connector) SyncTicker(ctx context.Context, market string) (schema.Ticker, error) {
	if err := schema.ValidateMarket(market); err != nil {
		return schema.Ticker{}, err
	}
	native := poloniex.UnformatMarket(market)

	body, err := c.gw.Public(ctx, "returnTicker", nil)
	if err != nil {
		c.recordPass(ctx, "ticker", "error")
		return schema.Ticker{}, err
	}
	if perr := poloniex.ParseError(body); perr != nil {
		c.recordPass(ctx, "ticker", "error")
		return schema.Ticker{}, perr
	}

	var table map[string]poloniex.TickerEntry
	if err := json.Unmarshal(body, &table); err != nil {
		c.recordPass(ctx, "ticker", "error")
		return schema.Ticker{}, errs.New(poloniex.Exchange, errs.CodeExchange,
			errs.WithMessage("malformed ticker table"), errs.WithCause(err))
	}
	entry, ok := table[native]
	if !ok {
		c.recordPass(ctx, "ticker", "error")
		return schema.Ticker{}, errs.New(poloniex.Exchange, errs.CodeNotFound,
			errs.WithMessage("market absent from ticker table: "+native),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}

	tick := schema.NewTicker(poloniex.Exchange, market,
		floatField(entry.HighestBid),
		floatField(entry.LowestAsk),
		floatField(entry.Last),
		floatField(entry.High24hr),
		floatField(entry.Low24hr),
		floatField(entry.QuoteVolume),
		c.clock())

	if c.cache != nil {
		payload, err := json.Marshal(tick)
		if err != nil {
			return schema.Ticker{}, errs.New(poloniex.Exchange, errs.CodeStore,
				errs.WithMessage("encode ticker snapshot"), errs.WithCause(err))
		}
		key := snapshot.Key{Exchange: poloniex.Exchange, Market: market}
		if err := c.cache.Put(ctx, snapshot.Record{Key: key, Payload: payload}); err != nil {
			c.recordPass(ctx, "ticker", "error")
			return schema.Ticker{}, err
		}
	}

	c.log.Debug("ticker published",
		observability.String("market", market),
		observability.String("last", entry.Last))
	c.recordPass(ctx, "ticker", "ok")
	return tick, nil
}

func floatField(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
