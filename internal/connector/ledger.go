package connector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// ledgerEpoch floors every deposits/withdrawals query: nothing exists on
// Poloniex before January 2014.
const ledgerEpoch = 1389728364

// SyncCredits walks deposit history backward from now, deduplicating by
// "{exchange}|{txid}".
func (c *Connector) SyncCredits(ctx context.Context, rescan bool) error {
	fetch := func(ctx context.Context, windowEnd time.Time) ([]historyRecord, error) {
		return c.fetchLedgerPage(ctx, schema.LedgerCredit, windowEnd)
	}
	return c.walkHistory(ctx, "credits", rescan, fetch, c.ledgerExists)
}

// SyncDebits walks withdrawal history backward from now, deduplicating by
// "{exchange}|{withdrawalNumber}".
func (c *Connector) SyncDebits(ctx context.Context, rescan bool) error {
	fetch := func(ctx context.Context, windowEnd time.Time) ([]historyRecord, error) {
		return c.fetchLedgerPage(ctx, schema.LedgerDebit, windowEnd)
	}
	return c.walkHistory(ctx, "debits", rescan, fetch, c.ledgerExists)
}

func (c *Connector) ledgerExists(ctx context.Context, refID string) (bool, error) {
	return c.mirror.LedgerEntryExists(ctx, refID)
}

func (c *Connector) fetchLedgerPage(ctx context.Context, kind schema.LedgerKind, windowEnd time.Time) ([]historyRecord, error) {
	params := url.Values{}
	params.Set("start", strconv.FormatInt(ledgerEpoch, 10))
	params.Set("end", strconv.FormatInt(windowEnd.Unix(), 10))

	body, err := c.gw.Private(ctx, "returnDepositsWithdrawals", params)
	if err != nil {
		return nil, err
	}
	if perr := poloniex.ParseError(body); perr != nil {
		return nil, perr
	}

	var ledgers poloniex.DepositsWithdrawals
	if err := json.Unmarshal(body, &ledgers); err != nil {
		return nil, errs.New(poloniex.Exchange, errs.CodeExchange,
			errs.WithMessage("malformed deposits/withdrawals payload"), errs.WithCause(err))
	}

	var records []historyRecord
	switch kind {
	case schema.LedgerCredit:
		for _, dep := range ledgers.Deposits {
			rec, err := c.creditRecord(dep)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	case schema.LedgerDebit:
		for _, wd := range ledgers.Withdrawals {
			rec, err := c.debitRecord(wd)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *Connector) creditRecord(dep poloniex.Deposit) (historyRecord, error) {
	amount, err := poloniex.ParseAmount(dep.Amount)
	if err != nil {
		return historyRecord{}, err
	}
	entry := schema.LedgerEntry{
		RefID:     poloniex.Exchange + "|" + dep.TxID,
		Kind:      schema.LedgerCredit,
		Exchange:  poloniex.Exchange,
		Account:   c.account,
		Commodity: poloniex.FormatCommodity(dep.Currency),
		Amount:    amount,
		Address:   dep.Address,
		Network:   poloniex.Exchange,
		Status:    dep.Status,
		Time:      time.Unix(dep.Timestamp, 0).UTC(),
	}
	return historyRecord{
		refID: entry.RefID,
		time:  entry.Time,
		apply: func(ctx context.Context, tx schema.MirrorTx) error {
			return tx.InsertLedgerEntry(ctx, entry)
		},
	}, nil
}

func (c *Connector) debitRecord(wd poloniex.Withdrawal) (historyRecord, error) {
	amount, err := poloniex.ParseAmount(wd.Amount)
	if err != nil {
		return historyRecord{}, err
	}
	entry := schema.LedgerEntry{
		RefID:     poloniex.Exchange + "|" + strconv.FormatInt(wd.WithdrawalNumber, 10),
		Kind:      schema.LedgerDebit,
		Exchange:  poloniex.Exchange,
		Account:   c.account,
		Commodity: poloniex.FormatCommodity(wd.Currency),
		Amount:    amount,
		Address:   wd.Address,
		Network:   poloniex.Exchange,
		Status:    wd.Status,
		Time:      time.Unix(wd.Timestamp, 0).UTC(),
	}
	return historyRecord{
		refID: entry.RefID,
		time:  entry.Time,
		apply: func(ctx context.Context, tx schema.MirrorTx) error {
			return tx.InsertLedgerEntry(ctx, entry)
		},
	}, nil
}
