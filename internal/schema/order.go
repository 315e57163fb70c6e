package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

// OrderState enumerates the order lifecycle.
type OrderState string

const (
	// OrderStatePending marks an order created locally but not yet accepted.
	OrderStatePending OrderState = "pending"
	// OrderStateOpen marks an order acknowledged by the exchange.
	OrderStateOpen OrderState = "open"
	// OrderStateClosed marks a filled, cancelled, or externally-removed order.
	// Closure is terminal: a closed order is never resurrected.
	OrderStateClosed OrderState = "closed"
)

// Valid reports whether the order state is recognised.
func (s OrderState) Valid() bool {
	switch s {
	case OrderStatePending, OrderStateOpen, OrderStateClosed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool { return s == OrderStateClosed }

// PlaceholderExchange prefixes order references that have not yet been
// acknowledged by the exchange.
const PlaceholderExchange = "tmp"

// OrderRef links a local order to its exchange-native identity. It is kept as
// a structured pair internally and formatted "{exchange}|{native}" only at
// storage and wire boundaries.
type OrderRef struct {
	Exchange string
	Native   string
}

// ParseOrderRef splits a composite order-id string. An input without a
// separator is treated as a bare native id with no exchange prefix.
func ParseOrderRef(raw string) OrderRef {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OrderRef{}
	}
	idx := strings.IndexByte(trimmed, '|')
	if idx < 0 {
		return OrderRef{Native: trimmed}
	}
	return OrderRef{Exchange: trimmed[:idx], Native: trimmed[idx+1:]}
}

// String renders the composite "{exchange}|{native}" form.
func (r OrderRef) String() string {
	if r.Exchange == "" && r.Native == "" {
		return ""
	}
	return r.Exchange + "|" + r.Native
}

// IsZero reports whether the reference carries no identity.
func (r OrderRef) IsZero() bool { return r.Exchange == "" && r.Native == "" }

// Placeholder reports whether the reference still carries the local
// placeholder prefix assigned before exchange acknowledgment.
func (r OrderRef) Placeholder() bool { return r.Exchange == PlaceholderExchange }

// Normalize rewrites a placeholder prefix to the given exchange name. A
// reference already carrying a real prefix is returned unchanged.
func (r OrderRef) Normalize(exchange string) OrderRef {
	if r.Placeholder() {
		return OrderRef{Exchange: exchange, Native: r.Native}
	}
	return r
}

// Order mirrors a single exchange order. The order lifecycle manager is the
// only writer.
type Order struct {
	ID       string // local identity, assigned by the platform
	Account  string
	Market   string // canonical
	Side     Side
	Price    decimal.Decimal // quote commodity per unit
	Quantity decimal.Decimal // base commodity
	Executed decimal.Decimal // base commodity already filled
	State    OrderState
	Ref      OrderRef
	ExpireAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the invariants every persisted order must satisfy.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("order id required"))
	}
	if err := ValidateMarket(o.Market); err != nil {
		return err
	}
	if !o.Side.Valid() {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("unknown order side: "+string(o.Side)))
	}
	if !o.State.Valid() {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("unknown order state: "+string(o.State)))
	}
	return nil
}
