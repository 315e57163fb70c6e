package connector

import (
	"context"
	"time"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
)

// historyRecord is one normalized row of exchange history. RefID is the
// composite dedup key; apply inserts the record inside a transaction.
type historyRecord struct {
	refID string
	time  time.Time
	apply func(ctx context.Context, tx schema.MirrorTx) error
}

// historyFetch pulls one page of records whose timestamps are at or before
// windowEnd.
type historyFetch func(ctx context.Context, windowEnd time.Time) ([]historyRecord, error)

// historyExists reports whether a record's composite id is already mirrored.
type historyExists func(ctx context.Context, refID string) (bool, error)

// walkHistory drives the shrinking-window cursor shared by trade and ledger
// synchronization. The cursor starts at now and walks backward: each window's
// fresh records commit in one transaction, then the cursor advances to the
// oldest timestamp seen. A read timeout doubles the adaptive pause and
// retries the same window; any other fetch error aborts the pass, leaving
// prior windows committed. Sustained success shrinks the pause by 5%.
// With rescan disabled only the first page is processed.
func (c *Connector) walkHistory(ctx context.Context, kind string, rescan bool, fetch historyFetch, exists historyExists) error {
	windowEnd := c.clock().UTC()
	previous := windowEnd.Add(-time.Second)
	pause := c.pause
	inserted := 0

	for !windowEnd.Equal(previous) {
		records, err := fetch(ctx, windowEnd)
		if err != nil {
			if errs.IsTimeout(err) {
				pause *= 2
				c.log.Debug("history window timed out, backing off",
					observability.String("kind", kind), observability.Err(err))
				if serr := c.sleep(ctx, pause); serr != nil {
					return serr
				}
				continue
			}
			c.log.Warn("history pass aborted",
				observability.String("kind", kind), observability.Err(err))
			c.recordPass(ctx, kind, "aborted")
			return nil
		}
		previous = windowEnd

		if len(records) == 0 {
			break
		}

		oldest := windowEnd
		var fresh []historyRecord
		for _, rec := range records {
			if rec.time.Before(oldest) {
				oldest = rec.time
			}
			known, err := exists(ctx, rec.refID)
			if err != nil {
				c.log.Warn("history pass aborted on store read",
					observability.String("kind", kind), observability.Err(err))
				c.recordPass(ctx, kind, "aborted")
				return nil
			}
			if known {
				continue
			}
			fresh = append(fresh, rec)
		}

		if len(fresh) > 0 {
			err := c.mirror.WithTransaction(ctx, func(ctx context.Context, tx schema.MirrorTx) error {
				for _, rec := range fresh {
					if err := rec.apply(ctx, tx); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				c.log.Error("history window commit failed",
					observability.String("kind", kind), observability.Err(err))
				c.recordPass(ctx, kind, "error")
				return errs.New(poloniex.Exchange, errs.CodeStore,
					errs.WithMessage("persist "+kind+" window"), errs.WithCause(err))
			}
			inserted += len(fresh)
		}

		pause = time.Duration(float64(pause) * 0.95)
		if !rescan {
			break
		}
		if oldest.Before(windowEnd) {
			windowEnd = oldest
			if serr := c.sleep(ctx, pause); serr != nil {
				return serr
			}
		}
	}

	c.recordPass(ctx, kind, "ok")
	c.recordRecords(ctx, kind, inserted)
	return nil
}
