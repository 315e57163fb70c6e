package schema

import "github.com/shopspring/decimal"

// Balance tracks per-commodity holdings for one account. Upserted in place:
// exactly one row exists per (account, commodity) after a successful sync.
type Balance struct {
	Account   string
	Commodity string // canonical
	Total     decimal.Decimal
	Available decimal.Decimal
}
