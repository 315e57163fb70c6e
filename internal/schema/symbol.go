// Package schema defines the canonical data model shared between the
// synchronization engine and the persistence layer.
package schema

import (
	"strings"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

// Side identifies which side of the book an order rests on.
type Side string

const (
	// SideBid represents a buy order.
	SideBid Side = "bid"
	// SideAsk represents a sell order.
	SideAsk Side = "ask"
)

// Valid reports whether the side is recognised.
func (s Side) Valid() bool {
	switch s {
	case SideBid, SideAsk:
		return true
	default:
		return false
	}
}

// SplitMarket breaks a canonical market symbol into its base and quote
// commodity codes. Canonical markets read "{BASE}_{QUOTE}" uppercase, with
// prices denominated in the quote commodity and quantities in the base.
func SplitMarket(market string) (base, quote string, err error) {
	parts := strings.Split(market, "_")
	if len(parts) != 2 {
		return "", "", errs.New("", errs.CodeInvalid,
			errs.WithMessage("malformed market symbol: "+market),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	base, quote = parts[0], parts[1]
	if !validCommodity(base) || !validCommodity(quote) {
		return "", "", errs.New("", errs.CodeInvalid,
			errs.WithMessage("malformed market symbol: "+market),
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
	}
	return base, quote, nil
}

// BaseCommodity returns the base (quantity) commodity of a canonical market,
// or the empty string for malformed input.
func BaseCommodity(market string) string {
	base, _, err := SplitMarket(market)
	if err != nil {
		return ""
	}
	return base
}

// QuoteCommodity returns the quote (pricing) commodity of a canonical market,
// or the empty string for malformed input.
func QuoteCommodity(market string) string {
	_, quote, err := SplitMarket(market)
	if err != nil {
		return ""
	}
	return quote
}

// ValidateMarket checks that the symbol is a well-formed canonical market.
func ValidateMarket(market string) error {
	_, _, err := SplitMarket(market)
	return err
}

func validCommodity(code string) bool {
	if len(code) < 3 || len(code) > 5 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
