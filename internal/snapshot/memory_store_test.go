package snapshot

import (
	"context"
	"testing"
)

func TestCacheKeyFormat(t *testing.T) {
	key := Key{Exchange: "poloniex", Market: "BTC_USD"}
	if got := key.CacheKey(); got != "poloniex_BTC_USD_ticker" {
		t.Fatalf("unexpected cache key %q", got)
	}
}

func TestMemoryStorePutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := Key{Exchange: "poloniex", Market: "BTC_USD"}

	if err := store.Put(ctx, Record{Key: key, Payload: []byte(`{"last":1}`)}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(ctx, Record{Key: key, Payload: []byte(`{"last":2}`)}); err != nil {
		t.Fatalf("second put failed: %v", err)
	}

	record, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(record.Payload) != `{"last":2}` {
		t.Fatalf("expected overwrite, got %s", record.Payload)
	}
	if record.UpdatedAt.IsZero() {
		t.Fatalf("expected update timestamp")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), Key{Exchange: "poloniex", Market: "ETH_BTC"})
	if err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestMemoryStoreRejectsEmptyKey(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put(context.Background(), Record{Key: Key{Market: "BTC_USD"}}); err == nil {
		t.Fatalf("expected validation error for missing exchange")
	}
	if err := store.Put(context.Background(), Record{Key: Key{Exchange: "poloniex"}}); err == nil {
		t.Fatalf("expected validation error for missing market")
	}
}

func TestMemoryStoreClonesPayload(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := Key{Exchange: "poloniex", Market: "BTC_USD"}
	payload := []byte(`{"last":1}`)
	if err := store.Put(ctx, Record{Key: key, Payload: payload}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	payload[0] = 'X'
	record, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.Payload[0] != '{' {
		t.Fatalf("stored payload aliased caller slice")
	}
}
