// Package poloniex implements the Poloniex REST and websocket adapter.
package poloniex

import "strings"

// Poloniex swaps base and quote in its pair symbols and quotes dollar markets
// in USDT. FormatMarket("USDT_BTC") == "BTC_USD" and back again: the two
// functions are exact inverses over well-formed input.

// FormatMarket converts an exchange-native pair symbol to canonical form.
func FormatMarket(market string) string {
	market = strings.ToUpper(market)
	if strings.Contains(market, "USDT") {
		market = strings.ReplaceAll(market, "USDT", "USD")
	}
	return swapPair(market)
}

// UnformatMarket converts a canonical market symbol to the exchange-native
// form. USD is substituted only when USDT is not already present, so feeding
// a native symbol back through does not double-substitute.
func UnformatMarket(market string) string {
	if strings.Contains(market, "USD") && !strings.Contains(market, "USDT") {
		market = strings.ReplaceAll(market, "USD", "USDT")
	}
	return swapPair(market)
}

// FormatCommodity converts an exchange-native commodity code to canonical form.
func FormatCommodity(code string) string {
	if code == "USDT" {
		return "USD"
	}
	return code
}

// UnformatCommodity converts a canonical commodity code to the native form.
func UnformatCommodity(code string) string {
	if code == "USD" {
		return "USDT"
	}
	return code
}

func swapPair(market string) string {
	idx := strings.IndexByte(market, '_')
	if idx < 0 {
		return market
	}
	return market[idx+1:] + "_" + market[:idx]
}
