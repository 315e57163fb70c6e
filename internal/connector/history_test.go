package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/schema"
)

var historyFrozen = time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)

func newHistoryConnector(gw Gateway, mirror schema.Mirror, sleeps *[]time.Duration) *Connector {
	return New(Options{
		Gateway:      gw,
		Mirror:       mirror,
		Account:      "primary",
		HistoryPause: 100 * time.Millisecond,
		Clock:        func() time.Time { return historyFrozen },
		Sleep: func(_ context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
	})
}

func tradeHistoryPage(rows string) []byte {
	return []byte(fmt.Sprintf(`{"USDT_BTC": [%s]}`, rows))
}

func tradeRow(gtid int64, date string) string {
	return fmt.Sprintf(`{"globalTradeID": %d, "tradeID": "%d", "date": %q,
		"rate": "100", "amount": "0.5", "fee": "0.002", "type": "buy", "category": "exchange"}`,
		gtid, gtid, date)
}

func TestSyncTradesRescanIsIdempotent(t *testing.T) {
	older := historyFrozen.Add(-2 * time.Hour)
	olderDate := older.Format("2006-01-02 15:04:05")
	newest := historyFrozen.Add(-time.Hour).Format("2006-01-02 15:04:05")

	gw := &fakeGateway{
		private: func(command string, params url.Values) ([]byte, error) {
			if command != "returnTradeHistory" {
				t.Fatalf("unexpected command %q", command)
			}
			end, _ := strconv.ParseInt(params.Get("end"), 10, 64)
			if end == historyFrozen.Unix() {
				return tradeHistoryPage(tradeRow(1, newest) + "," + tradeRow(2, olderDate)), nil
			}
			// Overlapping older window returns the boundary record again.
			return tradeHistoryPage(tradeRow(2, olderDate)), nil
		},
	}
	mirror := newFakeMirror()
	c := newHistoryConnector(gw, mirror, nil)

	for run := 0; run < 2; run++ {
		if err := c.SyncTrades(context.Background(), "", true); err != nil {
			t.Fatalf("rescan run %d: %v", run, err)
		}
	}
	if len(mirror.trades) != 2 {
		t.Fatalf("expected 2 unique trades after repeated rescans, got %d", len(mirror.trades))
	}
	trade, ok := mirror.trades["poloniex|1"]
	if !ok {
		t.Fatalf("trade poloniex|1 missing")
	}
	if trade.Market != "BTC_USD" || trade.Side != schema.SideBid {
		t.Fatalf("unexpected trade normalization %+v", trade)
	}
	if trade.FeeSide != schema.FeeSideQuote {
		t.Fatalf("default fee side must be quote, got %q", trade.FeeSide)
	}
}

func TestSyncTradesTimeoutRetriesSameWindow(t *testing.T) {
	var ends []string
	calls := 0
	gw := &fakeGateway{
		private: func(_ string, params url.Values) ([]byte, error) {
			calls++
			ends = append(ends, params.Get("end"))
			if calls == 1 {
				return nil, errs.New("poloniex", errs.CodeNetwork,
					errs.WithMessage("read timeout"), errs.WithCanonicalCode(errs.CanonicalTimeout))
			}
			return []byte(`{}`), nil
		},
	}
	var sleeps []time.Duration
	c := newHistoryConnector(gw, newFakeMirror(), &sleeps)

	if err := c.SyncTrades(context.Background(), "", true); err != nil {
		t.Fatalf("sync trades: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected retry after timeout, got %d calls", calls)
	}
	if ends[0] != ends[1] {
		t.Fatalf("timeout retry must not advance the cursor: %v", ends)
	}
	if len(sleeps) != 1 || sleeps[0] != 200*time.Millisecond {
		t.Fatalf("expected one doubled backoff sleep, got %v", sleeps)
	}
}

func TestSyncTradesNonTimeoutAborts(t *testing.T) {
	calls := 0
	gw := &fakeGateway{
		private: func(string, url.Values) ([]byte, error) {
			calls++
			return []byte(`{"error": "Something went wrong."}`), nil
		},
	}
	mirror := newFakeMirror()
	c := newHistoryConnector(gw, mirror, nil)

	if err := c.SyncTrades(context.Background(), "", true); err != nil {
		t.Fatalf("abort must be silent: %v", err)
	}
	if calls != 1 {
		t.Fatalf("abort must not retry, got %d calls", calls)
	}
	if len(mirror.trades) != 0 {
		t.Fatalf("aborted pass must not commit records")
	}
}

func TestSyncTradesIncrementalStopsAfterFirstPage(t *testing.T) {
	calls := 0
	older := historyFrozen.Add(-3 * time.Hour).Format("2006-01-02 15:04:05")
	gw := &fakeGateway{
		private: func(string, url.Values) ([]byte, error) {
			calls++
			return tradeHistoryPage(tradeRow(int64(calls), older)), nil
		},
	}
	mirror := newFakeMirror()
	c := newHistoryConnector(gw, mirror, nil)

	if err := c.SyncTrades(context.Background(), "", false); err != nil {
		t.Fatalf("sync trades: %v", err)
	}
	if calls != 1 {
		t.Fatalf("incremental sync must fetch a single page, got %d calls", calls)
	}
	if len(mirror.trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(mirror.trades))
	}
}

func TestSyncTradesScopedMarketUsesNativePair(t *testing.T) {
	gw := &fakeGateway{
		private: func(_ string, params url.Values) ([]byte, error) {
			if params.Get("currencyPair") != "USDT_BTC" {
				return nil, errs.New("poloniex", errs.CodeInvalid,
					errs.WithMessage("unexpected pair "+params.Get("currencyPair")))
			}
			return []byte(`[` + tradeRow(5, historyFrozen.Add(-time.Minute).Format("2006-01-02 15:04:05")) + `]`), nil
		},
	}
	mirror := newFakeMirror()
	c := newHistoryConnector(gw, mirror, nil)

	if err := c.SyncTrades(context.Background(), "BTC_USD", false); err != nil {
		t.Fatalf("sync trades: %v", err)
	}
	trade, ok := mirror.trades["poloniex|5"]
	if !ok {
		t.Fatalf("scoped trade missing")
	}
	if trade.Market != "BTC_USD" {
		t.Fatalf("unexpected market %q", trade.Market)
	}
}

func TestSyncCreditsAndDebits(t *testing.T) {
	ts := historyFrozen.Add(-time.Hour).Unix()
	gw := &fakeGateway{
		private: func(command string, params url.Values) ([]byte, error) {
			if command != "returnDepositsWithdrawals" {
				t.Fatalf("unexpected command %q", command)
			}
			if params.Get("start") != "1389728364" {
				t.Fatalf("ledger queries must floor at the exchange epoch, got %q", params.Get("start"))
			}
			return []byte(fmt.Sprintf(`{
				"deposits": [
					{"currency": "USDT", "address": "addr-1", "amount": "250", "confirmations": 10,
					 "txid": "abc123", "timestamp": %d, "status": "COMPLETE"}
				],
				"withdrawals": [
					{"withdrawalNumber": 4242, "currency": "BTC", "address": "addr-2", "amount": "0.4",
					 "timestamp": %d, "status": "COMPLETE", "ipAddress": "127.0.0.1"}
				]
			}`, ts, ts)), nil
		},
	}
	mirror := newFakeMirror()
	c := newHistoryConnector(gw, mirror, nil)

	if err := c.SyncCredits(context.Background(), false); err != nil {
		t.Fatalf("sync credits: %v", err)
	}
	if err := c.SyncDebits(context.Background(), false); err != nil {
		t.Fatalf("sync debits: %v", err)
	}

	credit, ok := mirror.ledger["poloniex|abc123"]
	if !ok {
		t.Fatalf("deposit not mirrored")
	}
	if credit.Kind != schema.LedgerCredit || credit.Commodity != "USD" {
		t.Fatalf("unexpected credit %+v", credit)
	}
	debit, ok := mirror.ledger["poloniex|4242"]
	if !ok {
		t.Fatalf("withdrawal not mirrored")
	}
	if debit.Kind != schema.LedgerDebit || debit.Commodity != "BTC" {
		t.Fatalf("unexpected debit %+v", debit)
	}

	// Re-running must not duplicate either record.
	if err := c.SyncCredits(context.Background(), false); err != nil {
		t.Fatalf("second credits pass: %v", err)
	}
	if len(mirror.ledger) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(mirror.ledger))
	}
}
