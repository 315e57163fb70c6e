package schema

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOrderRef(t *testing.T) {
	cases := []struct {
		raw      string
		exchange string
		native   string
	}{
		{"poloniex|12345", "poloniex", "12345"},
		{"tmp|67890", "tmp", "67890"},
		{"12345", "", "12345"},
		{"  poloniex|42  ", "poloniex", "42"},
		{"", "", ""},
	}
	for _, tc := range cases {
		ref := ParseOrderRef(tc.raw)
		if ref.Exchange != tc.exchange || ref.Native != tc.native {
			t.Fatalf("ParseOrderRef(%q) = %+v, want {%s %s}", tc.raw, ref, tc.exchange, tc.native)
		}
	}
}

func TestOrderRefRoundTrip(t *testing.T) {
	ref := OrderRef{Exchange: "poloniex", Native: "991"}
	if got := ParseOrderRef(ref.String()); got != ref {
		t.Fatalf("round trip mismatch: %+v != %+v", got, ref)
	}
}

func TestOrderRefNormalizeReplacesPlaceholder(t *testing.T) {
	ref := OrderRef{Exchange: PlaceholderExchange, Native: "5"}
	if !ref.Placeholder() {
		t.Fatalf("expected placeholder classification")
	}
	normalized := ref.Normalize("poloniex")
	if normalized.Exchange != "poloniex" || normalized.Native != "5" {
		t.Fatalf("unexpected normalization: %+v", normalized)
	}
	already := OrderRef{Exchange: "poloniex", Native: "5"}
	if already.Normalize("other") != already {
		t.Fatalf("real prefix must not be rewritten")
	}
}

func TestOrderStateTransitionsTerminal(t *testing.T) {
	if OrderStatePending.Terminal() || OrderStateOpen.Terminal() {
		t.Fatalf("pending and open are not terminal")
	}
	if !OrderStateClosed.Terminal() {
		t.Fatalf("closed is terminal")
	}
}

func TestOrderValidate(t *testing.T) {
	order := Order{
		ID:       "ord-1",
		Market:   "BTC_USD",
		Side:     SideBid,
		Price:    decimal.RequireFromString("100"),
		Quantity: decimal.RequireFromString("0.01"),
		State:    OrderStatePending,
	}
	if err := order.Validate(); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}
	bad := order
	bad.Market = "BTCUSD"
	if err := bad.Validate(); err == nil {
		t.Fatalf("malformed market must be rejected")
	}
	bad = order
	bad.Side = "long"
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown side must be rejected")
	}
}

func TestBaseAndQuoteCommodity(t *testing.T) {
	if base := BaseCommodity("BTC_USD"); base != "BTC" {
		t.Fatalf("expected base BTC, got %q", base)
	}
	if quote := QuoteCommodity("BTC_USD"); quote != "USD" {
		t.Fatalf("expected quote USD, got %q", quote)
	}
	if base := BaseCommodity("BTCUSD"); base != "" {
		t.Fatalf("expected empty base for malformed market, got %q", base)
	}
	if quote := QuoteCommodity(""); quote != "" {
		t.Fatalf("expected empty quote for empty market, got %q", quote)
	}
}

func TestSplitMarket(t *testing.T) {
	base, quote, err := SplitMarket("BTC_USD")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if base != "BTC" || quote != "USD" {
		t.Fatalf("unexpected split: base=%s quote=%s", base, quote)
	}
	if _, _, err := SplitMarket("BTCUSD"); err == nil {
		t.Fatalf("missing separator must be rejected")
	}
	if _, _, err := SplitMarket("btc_usd"); err == nil {
		t.Fatalf("lowercase symbols must be rejected")
	}
}
