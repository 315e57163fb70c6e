package schema

import "time"

// Ticker is an ephemeral per-market snapshot published to the shared cache.
// Fully overwritten on each refresh; no history retained.
type Ticker struct {
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
	Last     float64 `json:"last"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Volume   float64 `json:"volume"`
	Market   string  `json:"market"`
	Exchange string  `json:"exchange"`
	Time     string  `json:"time"` // RFC3339
}

// NewTicker stamps a snapshot with the publish time.
func NewTicker(exchange, market string, bid, ask, last, high, low, volume float64, at time.Time) Ticker {
	return Ticker{
		Bid:      bid,
		Ask:      ask,
		Last:     last,
		High:     high,
		Low:      low,
		Volume:   volume,
		Market:   market,
		Exchange: exchange,
		Time:     at.UTC().Format(time.RFC3339),
	}
}
