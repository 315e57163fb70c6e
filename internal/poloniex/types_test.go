package poloniex

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTradeRowTime(t *testing.T) {
	row := TradeRow{Date: "2024-05-12 09:58:31"}
	ts, err := row.Time()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 12, 9, 58, 31, 0, time.UTC), ts)
}

func TestTradeRowTimeMalformed(t *testing.T) {
	row := TradeRow{Date: "12/05/2024"}
	_, err := row.Time()
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	dec, err := ParseAmount("0.00000173")
	require.NoError(t, err)
	require.True(t, dec.Equal(decimal.RequireFromString("0.00000173")))

	_, err = ParseAmount("not-a-number")
	require.Error(t, err)
}

func TestDepositsWithdrawalsDecoding(t *testing.T) {
	payload := []byte(`{
		"deposits": [
			{"currency": "BTC", "amount": "0.5", "txid": "abc123", "timestamp": 1715508000, "status": "COMPLETE", "confirmations": 12}
		],
		"withdrawals": [
			{"withdrawalNumber": 4242, "currency": "USDT", "amount": "120.0", "timestamp": 1715509000, "status": "COMPLETE"}
		]
	}`)

	var resp DepositsWithdrawals
	require.NoError(t, json.Unmarshal(payload, &resp))
	require.Len(t, resp.Deposits, 1)
	require.Equal(t, "abc123", resp.Deposits[0].TxID)
	require.EqualValues(t, 1715508000, resp.Deposits[0].Timestamp)
	require.Len(t, resp.Withdrawals, 1)
	require.EqualValues(t, 4242, resp.Withdrawals[0].WithdrawalNumber)
}

func TestOrderAckDecoding(t *testing.T) {
	var ack OrderAck
	require.NoError(t, json.Unmarshal([]byte(`{"orderNumber":"31226040","resultingTrades":[]}`), &ack))
	require.Equal(t, "31226040", ack.OrderNumber)

	var cancel CancelAck
	require.NoError(t, json.Unmarshal([]byte(`{"success":1}`), &cancel))
	require.Equal(t, 1, cancel.Success)
}
