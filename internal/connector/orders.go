package connector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// CancelSelector identifies the order a cancel targets. Exactly one field
// should be set; the local id wins when several are supplied.
type CancelSelector struct {
	LocalID string
	OrderID string
	Order   *schema.Order
}

// CancelFilter scopes a batch cancel. An explicit selector delegates to a
// single-order cancel; otherwise every open order matching Market and Side is
// cancelled best-effort.
type CancelFilter struct {
	Market  string
	Side    schema.Side
	LocalID string
	OrderID string
}

// CreateOrder loads a locally pending order and submits it to the exchange.
// A missing order whose expiry has already passed is re-enqueued on the
// platform submit queue rather than erroring. Exchange-side failures leave
// the order pending so a later pass can retry.
func (c *Connector) CreateOrder(ctx context.Context, localID string, expireAt time.Time) (*schema.Order, error) {
	order, err := c.mirror.GetOrderByID(ctx, localID)
	if err != nil {
		c.log.Warn("unable to find order", observability.String("id", localID), observability.Err(err))
		if !expireAt.IsZero() && expireAt.Before(c.clock()) && c.queue != nil {
			// Back of the line: the intent should not be silently dropped.
			if qerr := c.queue.Submit(ctx, poloniex.Exchange, localID, expireAt); qerr != nil {
				return nil, qerr
			}
			return nil, nil
		}
		return nil, err
	}
	if order.State != schema.OrderStatePending {
		return &order, nil
	}

	params := url.Values{}
	params.Set("currencyPair", poloniex.UnformatMarket(order.Market))
	params.Set("rate", order.Price.String())
	params.Set("amount", order.Quantity.String())

	body, err := c.gw.Private(ctx, nativeFromSide(order.Side), params)
	if err != nil {
		c.log.Warn("order submission failed, order stays pending",
			observability.String("id", localID), observability.Err(err))
		return &order, nil
	}
	if perr := poloniex.ParseError(body); perr != nil {
		c.log.Warn("exchange rejected order, order stays pending",
			observability.String("id", localID), observability.Err(perr))
		return &order, nil
	}

	var ack poloniex.OrderAck
	if err := json.Unmarshal(body, &ack); err != nil || ack.OrderNumber == "" {
		c.log.Warn("unusable order acknowledgment, order stays pending",
			observability.String("id", localID), observability.String("body", string(body)))
		return &order, nil
	}

	ref := compositeRef(ack.OrderNumber)
	err = c.mirror.WithTransaction(ctx, func(ctx context.Context, tx schema.MirrorTx) error {
		return tx.SetOrderAccepted(ctx, order.ID, ref)
	})
	if err != nil {
		c.log.Error("order accept commit failed", observability.String("id", localID), observability.Err(err))
		return &order, errs.New(poloniex.Exchange, errs.CodeStore,
			errs.WithMessage("persist order acknowledgment"), errs.WithCause(err))
	}

	order.Ref = ref
	order.State = schema.OrderStateOpen
	c.log.Info("order submitted",
		observability.String("id", order.ID),
		observability.String("order_id", ref.String()))
	return &order, nil
}

// CancelOrder resolves the selector to one order and submits a native cancel
// using the numeric suffix of its composite order-id. Success transitions the
// order to closed; failure leaves its state untouched. A selector that
// resolves to nothing is a no-op.
func (c *Connector) CancelOrder(ctx context.Context, selector CancelSelector) error {
	order, ok := c.resolveCancelTarget(ctx, selector)
	if !ok {
		return nil
	}
	if order.Ref.Native == "" {
		c.log.Warn("cancel target has no exchange reference", observability.String("id", order.ID))
		return nil
	}

	params := url.Values{}
	params.Set("orderNumber", order.Ref.Native)
	body, err := c.gw.Private(ctx, "cancelOrder", params)
	if err != nil {
		return err
	}
	if perr := poloniex.ParseError(body); perr != nil {
		return perr
	}
	var ack poloniex.CancelAck
	if err := json.Unmarshal(body, &ack); err != nil || ack.Success != 1 {
		return errs.New(poloniex.Exchange, errs.CodeExchange,
			errs.WithMessage("cancel not acknowledged"), errs.WithRawMessage(string(body)))
	}

	err = c.mirror.WithTransaction(ctx, func(ctx context.Context, tx schema.MirrorTx) error {
		if order.Ref.Placeholder() {
			if err := tx.SetOrderAccepted(ctx, order.ID, order.Ref.Normalize(poloniex.Exchange)); err != nil {
				return err
			}
		}
		return tx.UpdateOrderState(ctx, schema.OrderUpdate{ID: order.ID, State: schema.OrderStateClosed})
	})
	if err != nil {
		c.log.Error("cancel commit failed", observability.String("id", order.ID), observability.Err(err))
		return errs.New(poloniex.Exchange, errs.CodeStore,
			errs.WithMessage("persist order cancellation"), errs.WithCause(err))
	}
	c.log.Info("order cancelled", observability.String("id", order.ID))
	return nil
}

func (c *Connector) resolveCancelTarget(ctx context.Context, selector CancelSelector) (schema.Order, bool) {
	switch {
	case selector.LocalID != "":
		order, err := c.mirror.GetOrderByID(ctx, selector.LocalID)
		if err != nil {
			c.log.Debug("cancel target not found", observability.String("id", selector.LocalID))
			return schema.Order{}, false
		}
		return order, true
	case selector.OrderID != "":
		ref := schema.ParseOrderRef(selector.OrderID)
		if ref.Exchange == "" {
			ref.Exchange = poloniex.Exchange
		}
		order, err := c.mirror.GetOrderByRef(ctx, ref.String())
		if err != nil {
			c.log.Debug("cancel target not found", observability.String("order_id", ref.String()))
			return schema.Order{}, false
		}
		return order, true
	case selector.Order != nil:
		return *selector.Order, true
	default:
		return schema.Order{}, false
	}
}

// CancelOrders cancels a filtered set of open orders. Each individual cancel
// failure is logged and does not abort the batch.
func (c *Connector) CancelOrders(ctx context.Context, filter CancelFilter) error {
	if filter.LocalID != "" || filter.OrderID != "" {
		return c.CancelOrder(ctx, CancelSelector{LocalID: filter.LocalID, OrderID: filter.OrderID})
	}

	orders, err := c.GetOpenOrders(ctx, filter.Market)
	if err != nil {
		return err
	}
	for i := range orders {
		order := orders[i]
		if filter.Market != "" && filter.Market != order.Market {
			continue
		}
		if filter.Side != "" && filter.Side != order.Side {
			continue
		}
		if err := c.CancelOrder(ctx, CancelSelector{Order: &order}); err != nil {
			c.log.Warn("batch cancel: order failed",
				observability.String("id", order.ID), observability.Err(err))
		}
	}
	return nil
}

// GetOpenOrders fetches the exchange's open-order list (all markets when none
// is given) and folds it into the mirror: known orders are refreshed to open,
// unknown ones are inserted directly in open state. All changes commit in one
// transaction.
func (c *Connector) GetOpenOrders(ctx context.Context, market string) ([]schema.Order, error) {
	native, err := c.fetchOpenOrders(ctx, market)
	if err != nil {
		return nil, err
	}
	if len(native) == 0 {
		return nil, nil
	}

	var orders []schema.Order
	err = c.mirror.WithTransaction(ctx, func(ctx context.Context, tx schema.MirrorTx) error {
		orders = orders[:0]
		for canonical, rows := range native {
			for _, row := range rows {
				order, err := c.foldOpenOrder(ctx, tx, canonical, row)
				if err != nil {
					return err
				}
				orders = append(orders, order)
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("open-order fold commit failed", observability.Err(err))
		return nil, errs.New(poloniex.Exchange, errs.CodeStore,
			errs.WithMessage("persist open orders"), errs.WithCause(err))
	}
	return orders, nil
}

// foldOpenOrder merges one native open order into the mirror inside tx.
func (c *Connector) foldOpenOrder(ctx context.Context, tx schema.MirrorTx, market string, row poloniex.OpenOrder) (schema.Order, error) {
	ref := compositeRef(row.OrderNumber)
	order, err := c.mirror.GetOrderByRef(ctx, ref.String())
	if err == nil {
		if order.State != schema.OrderStateOpen && !order.State.Terminal() {
			if uerr := tx.UpdateOrderState(ctx, schema.OrderUpdate{ID: order.ID, State: schema.OrderStateOpen}); uerr != nil {
				return schema.Order{}, uerr
			}
			order.State = schema.OrderStateOpen
		}
		return order, nil
	}

	price, perr := poloniex.ParseAmount(row.Rate)
	if perr != nil {
		return schema.Order{}, perr
	}
	quantity, qerr := poloniex.ParseAmount(row.Amount)
	if qerr != nil {
		return schema.Order{}, qerr
	}
	order = schema.Order{
		ID:       c.newID(),
		Account:  c.account,
		Market:   market,
		Side:     sideFromNative(row.Type),
		Price:    price,
		Quantity: quantity,
		State:    schema.OrderStateOpen,
		Ref:      ref,
	}
	if ierr := tx.InsertOrder(ctx, order); ierr != nil {
		return schema.Order{}, ierr
	}
	c.log.Info("adopted out-of-band order",
		observability.String("order_id", ref.String()),
		observability.String("base", schema.BaseCommodity(market)),
		observability.String("quote", schema.QuoteCommodity(market)))
	return order, nil
}

// SyncOrders reconciles locally-open orders against a fresh open-order fetch:
// any open order absent from the exchange's list is transitioned to closed.
// Closure is final.
func (c *Connector) SyncOrders(ctx context.Context) error {
	native, err := c.fetchOpenOrders(ctx, "")
	if err != nil {
		c.recordPass(ctx, "orders", "error")
		return err
	}
	remote := make(map[string]struct{})
	for _, rows := range native {
		for _, row := range rows {
			remote[compositeRef(row.OrderNumber).String()] = struct{}{}
		}
	}

	local, err := c.mirror.ListActiveOrders(ctx, c.account)
	if err != nil {
		c.recordPass(ctx, "orders", "error")
		return err
	}
	var stale []schema.Order
	for _, order := range local {
		if order.State != schema.OrderStateOpen {
			continue
		}
		if _, ok := remote[order.Ref.String()]; !ok {
			stale = append(stale, order)
		}
	}
	if len(stale) == 0 {
		c.recordPass(ctx, "orders", "ok")
		return nil
	}

	err = c.mirror.WithTransaction(ctx, func(ctx context.Context, tx schema.MirrorTx) error {
		for _, order := range stale {
			if err := tx.UpdateOrderState(ctx, schema.OrderUpdate{ID: order.ID, State: schema.OrderStateClosed}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("order reconciliation commit failed", observability.Err(err))
		c.recordPass(ctx, "orders", "error")
		return errs.New(poloniex.Exchange, errs.CodeStore,
			errs.WithMessage("persist order closures"), errs.WithCause(err))
	}
	c.log.Info("closed externally-finished orders",
		observability.String("count", strconv.Itoa(len(stale))))
	c.recordPass(ctx, "orders", "ok")
	c.recordRecords(ctx, "orders", len(stale))
	return nil
}

// fetchOpenOrders pulls the native open-order list keyed by canonical market.
// It never touches the mirror.
func (c *Connector) fetchOpenOrders(ctx context.Context, market string) (map[string][]poloniex.OpenOrder, error) {
	params := url.Values{}
	if market == "" {
		params.Set("currencyPair", "all")
	} else {
		if err := schema.ValidateMarket(market); err != nil {
			return nil, err
		}
		params.Set("currencyPair", poloniex.UnformatMarket(market))
	}

	body, err := c.gw.Private(ctx, "returnOpenOrders", params)
	if err != nil {
		return nil, err
	}
	if perr := poloniex.ParseError(body); perr != nil {
		return nil, perr
	}

	out := make(map[string][]poloniex.OpenOrder)
	if market != "" {
		var rows []poloniex.OpenOrder
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, errs.New(poloniex.Exchange, errs.CodeExchange,
				errs.WithMessage("malformed open-order list"), errs.WithCause(err))
		}
		if len(rows) > 0 {
			out[market] = rows
		}
		return out, nil
	}

	var table map[string][]poloniex.OpenOrder
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, errs.New(poloniex.Exchange, errs.CodeExchange,
			errs.WithMessage("malformed open-order table"), errs.WithCause(err))
	}
	for native, rows := range table {
		if len(rows) == 0 {
			continue
		}
		out[poloniex.FormatMarket(native)] = rows
	}
	return out, nil
}
