// Package connector implements the synchronization and reconciliation engine
// that keeps a local mirror of Poloniex state consistent with the exchange.
package connector

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
	"github.com/tradeforge/poloniex-connector/internal/snapshot"
	"github.com/tradeforge/poloniex-connector/internal/telemetry"
)

// Gateway is the exchange request surface the connector calls through.
// *poloniex.Gateway satisfies it.
type Gateway interface {
	Public(ctx context.Context, command string, params url.Values) ([]byte, error)
	Private(ctx context.Context, command string, params url.Values) ([]byte, error)
}

// ExchangeConnector is the capability set every exchange integration exposes.
// The engine is written once against this interface; only the naming
// normalizer and the request gateway differ per exchange.
type ExchangeConnector interface {
	SyncTicker(ctx context.Context, market string) (schema.Ticker, error)
	SyncBalances(ctx context.Context) error
	CreateOrder(ctx context.Context, localID string, expireAt time.Time) (*schema.Order, error)
	CancelOrder(ctx context.Context, selector CancelSelector) error
	CancelOrders(ctx context.Context, filter CancelFilter) error
	GetOpenOrders(ctx context.Context, market string) ([]schema.Order, error)
	SyncOrders(ctx context.Context) error
	SyncTrades(ctx context.Context, market string, rescan bool) error
	SyncCredits(ctx context.Context, rescan bool) error
	SyncDebits(ctx context.Context, rescan bool) error
}

// Options configures a Connector. Gateway and Mirror are required.
type Options struct {
	Gateway Gateway
	Mirror  schema.Mirror
	Cache   snapshot.Store
	Queue   SubmitQueue

	// Account names the credential set the mirror rows belong to.
	Account string
	// FeeSide is the commodity trade fees are charged in. Poloniex charges
	// in the quote commodity.
	FeeSide schema.FeeSide
	// HistoryPause seeds the adaptive sleep between history windows.
	HistoryPause time.Duration

	Clock   func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
	NewID   func() string
	Logger  observability.Logger
	Metrics *telemetry.SyncMetrics
}

// Connector drives the Poloniex synchronization engine over an injected
// gateway, mirror store, and ticker cache.
type Connector struct {
	gw      Gateway
	mirror  schema.Mirror
	cache   snapshot.Store
	queue   SubmitQueue
	account string
	feeSide schema.FeeSide
	pause   time.Duration
	clock   func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	newID   func() string
	log     observability.Logger
	metrics *telemetry.SyncMetrics
}

const defaultHistoryPause = 2 * time.Second

// New constructs a Connector from the supplied options.
func New(opts Options) *Connector {
	c := &Connector{
		gw:      opts.Gateway,
		mirror:  opts.Mirror,
		cache:   opts.Cache,
		queue:   opts.Queue,
		account: opts.Account,
		feeSide: opts.FeeSide,
		pause:   opts.HistoryPause,
		clock:   opts.Clock,
		sleep:   opts.Sleep,
		newID:   opts.NewID,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if c.account == "" {
		c.account = "primary"
	}
	if !c.feeSide.Valid() {
		c.feeSide = schema.FeeSideQuote
	}
	if c.pause <= 0 {
		c.pause = defaultHistoryPause
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.log == nil {
		c.log = observability.Log()
	}
	return c
}

var _ ExchangeConnector = (*Connector)(nil)

func (c *Connector) recordPass(ctx context.Context, kind, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordPass(ctx, kind, outcome)
	}
}

func (c *Connector) recordRecords(ctx context.Context, kind string, count int) {
	if c.metrics != nil && count > 0 {
		c.metrics.RecordRecords(ctx, kind, count)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sideFromNative maps the exchange's buy/sell vocabulary onto book sides.
func sideFromNative(nativeSide string) schema.Side {
	if nativeSide == "sell" {
		return schema.SideAsk
	}
	return schema.SideBid
}

// nativeFromSide is the inverse mapping used when submitting orders.
func nativeFromSide(side schema.Side) string {
	if side == schema.SideAsk {
		return "sell"
	}
	return "buy"
}

func compositeRef(native string) schema.OrderRef {
	return schema.OrderRef{Exchange: poloniex.Exchange, Native: native}
}
