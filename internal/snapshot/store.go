// Package snapshot defines the shared ticker cache contract.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

// Key identifies a cached ticker snapshot.
type Key struct {
	Exchange string
	Market   string
}

// CacheKey renders the string key used by external key-value caches:
// "{exchange}_{market}_ticker".
func (k Key) CacheKey() string {
	return k.Exchange + "_" + k.Market + "_ticker"
}

// Validate ensures the key names a concrete exchange and market.
func (k Key) Validate() error {
	if strings.TrimSpace(k.Exchange) == "" {
		return errs.New("snapshot", errs.CodeInvalid, errs.WithMessage("exchange required"))
	}
	if strings.TrimSpace(k.Market) == "" {
		return errs.New("snapshot", errs.CodeInvalid, errs.WithMessage("market required"))
	}
	return nil
}

// Record is a cached snapshot entry. Payload holds the JSON-serialized ticker
// exactly as published to external consumers.
type Record struct {
	Key       Key
	Payload   []byte
	UpdatedAt time.Time
}

// Clone returns a deep copy of the record payload.
func (r Record) Clone() Record {
	clone := r
	if r.Payload != nil {
		clone.Payload = make([]byte, len(r.Payload))
		copy(clone.Payload, r.Payload)
	}
	return clone
}

// Store is the cache contract. Implementations must overwrite whole records:
// no history is retained for tickers.
type Store interface {
	Get(ctx context.Context, key Key) (Record, error)
	Put(ctx context.Context, record Record) error
}
