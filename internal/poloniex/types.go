package poloniex

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

// Exchange is the venue name used in composite identifiers and cache keys.
const Exchange = "poloniex"

// dateLayout is the timestamp format used by the trade-history endpoint.
const dateLayout = "2006-01-02 15:04:05"

// TickerEntry is one row of the returnTicker table.
type TickerEntry struct {
	Last        string `json:"last"`
	LowestAsk   string `json:"lowestAsk"`
	HighestBid  string `json:"highestBid"`
	High24hr    string `json:"high24hr"`
	Low24hr     string `json:"low24hr"`
	QuoteVolume string `json:"quoteVolume"`
	IsFrozen    string `json:"isFrozen"`
}

// OpenOrder is one row of the returnOpenOrders response.
type OpenOrder struct {
	OrderNumber string `json:"orderNumber"`
	Type        string `json:"type"` // "buy" or "sell"
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
	Total       string `json:"total"`
}

// TradeRow is one row of the returnTradeHistory response.
type TradeRow struct {
	GlobalTradeID int64  `json:"globalTradeID"`
	TradeID       string `json:"tradeID"`
	Date          string `json:"date"` // "2006-01-02 15:04:05" UTC
	Rate          string `json:"rate"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Type          string `json:"type"` // "buy" or "sell"
	Category      string `json:"category"`
}

// Time parses the row timestamp.
func (r TradeRow) Time() (time.Time, error) {
	ts, err := time.ParseInLocation(dateLayout, r.Date, time.UTC)
	if err != nil {
		return time.Time{}, errs.New(Exchange, errs.CodeExchange,
			errs.WithMessage("malformed trade timestamp"), errs.WithCause(err))
	}
	return ts, nil
}

// Deposit is one row of returnDepositsWithdrawals.deposits.
type Deposit struct {
	Currency      string `json:"currency"`
	Address       string `json:"address"`
	Amount        string `json:"amount"`
	Confirmations int    `json:"confirmations"`
	TxID          string `json:"txid"`
	Timestamp     int64  `json:"timestamp"` // unix seconds
	Status        string `json:"status"`
}

// Withdrawal is one row of returnDepositsWithdrawals.withdrawals.
type Withdrawal struct {
	WithdrawalNumber int64  `json:"withdrawalNumber"`
	Currency         string `json:"currency"`
	Address          string `json:"address"`
	Amount           string `json:"amount"`
	Timestamp        int64  `json:"timestamp"` // unix seconds
	Status           string `json:"status"`
	IPAddress        string `json:"ipAddress"`
}

// DepositsWithdrawals is the returnDepositsWithdrawals envelope.
type DepositsWithdrawals struct {
	Deposits    []Deposit    `json:"deposits"`
	Withdrawals []Withdrawal `json:"withdrawals"`
}

// OrderAck is the acknowledgment returned by buy/sell requests.
type OrderAck struct {
	OrderNumber string `json:"orderNumber"`
}

// CancelAck is the acknowledgment returned by cancelOrder requests.
type CancelAck struct {
	Success int `json:"success"`
}

// ParseAmount converts an exchange numeric string into a decimal amount.
func ParseAmount(value string) (decimal.Decimal, error) {
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errs.New(Exchange, errs.CodeExchange,
			errs.WithMessage("malformed numeric field"), errs.WithRawMessage(value), errs.WithCause(err))
	}
	return dec, nil
}
