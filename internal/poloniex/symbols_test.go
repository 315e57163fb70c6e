package poloniex

import "testing"

func TestMarketRoundTrips(t *testing.T) {
	pairs := map[string]string{
		"BTC_USD":  "USDT_BTC",
		"ETH_BTC":  "BTC_ETH",
		"LTC_BTC":  "BTC_LTC",
		"DASH_BTC": "BTC_DASH",
		"DASH_USD": "USDT_DASH",
	}
	for canonical, native := range pairs {
		if got := UnformatMarket(canonical); got != native {
			t.Fatalf("UnformatMarket(%s) = %s, want %s", canonical, got, native)
		}
		if got := FormatMarket(native); got != canonical {
			t.Fatalf("FormatMarket(%s) = %s, want %s", native, got, canonical)
		}
		if got := FormatMarket(UnformatMarket(canonical)); got != canonical {
			t.Fatalf("format∘unformat(%s) = %s", canonical, got)
		}
		if got := UnformatMarket(FormatMarket(native)); got != native {
			t.Fatalf("unformat∘format(%s) = %s", native, got)
		}
	}
}

func TestUnformatMarketAvoidsDoubleSubstitution(t *testing.T) {
	// A symbol already carrying USDT must not become USDTT.
	if got := UnformatMarket("USDT_BTC"); got != "BTC_USDT" {
		t.Fatalf("UnformatMarket(USDT_BTC) = %s", got)
	}
}

func TestFormatMarketLowercasesInput(t *testing.T) {
	if got := FormatMarket("usdt_btc"); got != "BTC_USD" {
		t.Fatalf("FormatMarket(usdt_btc) = %s", got)
	}
}

func TestCommodityRoundTrips(t *testing.T) {
	codes := map[string]string{
		"BTC": "BTC",
		"ETH": "ETH",
		"LTC": "LTC",
		"USD": "USDT",
	}
	for canonical, native := range codes {
		if got := UnformatCommodity(canonical); got != native {
			t.Fatalf("UnformatCommodity(%s) = %s, want %s", canonical, got, native)
		}
		if got := FormatCommodity(native); got != canonical {
			t.Fatalf("FormatCommodity(%s) = %s, want %s", native, got, canonical)
		}
		if got := FormatCommodity(UnformatCommodity(canonical)); got != canonical {
			t.Fatalf("format∘unformat(%s) = %s", canonical, got)
		}
	}
}
