package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeSide names the commodity a trade fee was charged in. Exchanges disagree
// on this, so it is a per-exchange parameter rather than a constant.
type FeeSide string

const (
	// FeeSideBase charges fees in the base commodity.
	FeeSideBase FeeSide = "base"
	// FeeSideQuote charges fees in the quote commodity.
	FeeSideQuote FeeSide = "quote"
)

// Valid reports whether the fee side is recognised.
func (f FeeSide) Valid() bool {
	switch f {
	case FeeSideBase, FeeSideQuote:
		return true
	default:
		return false
	}
}

// Trade is an immutable execution record. Uniqueness is enforced on TradeID.
type Trade struct {
	TradeID  string // "{exchange}|{native_global_trade_id}"
	Exchange string
	Market   string // canonical
	Side     Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fee      decimal.Decimal
	FeeSide  FeeSide
	Time     time.Time
}
