package poloniex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/internal/observability"
)

const (
	// DefaultStreamURL is the public Poloniex websocket ticker feed.
	DefaultStreamURL = "wss://api.poloniex.com"

	streamReadLimit            = 1024 * 1024
	streamMaxReconnectInterval = 20 * time.Second
)

// TickerUpdate is one normalized tick from the streaming feed. Market is
// canonical.
type TickerUpdate struct {
	Market string
	Bid    float64
	Ask    float64
	Last   float64
	High   float64
	Low    float64
	Volume float64
}

// StreamHandler consumes ticker updates. Handlers must not block: a slow
// handler stalls the read loop.
type StreamHandler func(ctx context.Context, update TickerUpdate)

// StreamOptions configures a TickerStream.
type StreamOptions struct {
	URL     string
	Handler StreamHandler
	Logger  observability.Logger
}

// TickerStream maintains a websocket subscription to the ticker feed,
// reconnecting with exponential backoff.
type TickerStream struct {
	url     string
	handler StreamHandler
	log     observability.Logger
}

// NewTickerStream constructs a stream from the supplied options.
func NewTickerStream(opts StreamOptions) (*TickerStream, error) {
	if opts.Handler == nil {
		return nil, errors.New("poloniex stream: handler required")
	}
	s := &TickerStream{
		url:     opts.URL,
		handler: opts.Handler,
		log:     opts.Logger,
	}
	if s.url == "" {
		s.url = DefaultStreamURL
	}
	if s.log == nil {
		s.log = observability.Log()
	}
	return s, nil
}

// Run connects and consumes ticker frames until ctx is cancelled. Connection
// failures reconnect with exponential backoff; backoff resets after a healthy
// session.
func (s *TickerStream) Run(ctx context.Context) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = streamMaxReconnectInterval

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.runOnce(ctx)
		if err != nil && errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			s.log.Warn("ticker stream disconnected", observability.Err(err))
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = streamMaxReconnectInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (s *TickerStream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()
	conn.SetReadLimit(streamReadLimit)

	subscribe := map[string]string{"command": "subscribe", "channel": "ticker"}
	payload, err := json.Marshal(subscribe)
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = conn.Write(writeCtx, websocket.MessageText, payload)
	cancel()
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.log.Info("ticker stream subscribed", observability.String("url", s.url))

	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		update, ok := parseTickerFrame(frame)
		if !ok {
			continue
		}
		s.handler(ctx, update)
	}
}

// parseTickerFrame decodes one feed frame. Frames are arrays of the shape
// [pair, last, lowestAsk, highestBid, percentChange, baseVolume,
// quoteVolume, isFrozen, high24hr, low24hr]; anything else is skipped.
func parseTickerFrame(frame []byte) (TickerUpdate, bool) {
	var fields []any
	if err := json.Unmarshal(frame, &fields); err != nil {
		return TickerUpdate{}, false
	}
	if len(fields) < 10 {
		return TickerUpdate{}, false
	}
	pair, ok := fields[0].(string)
	if !ok || pair == "" {
		return TickerUpdate{}, false
	}
	update := TickerUpdate{
		Market: FormatMarket(pair),
		Last:   numericField(fields[1]),
		Ask:    numericField(fields[2]),
		Bid:    numericField(fields[3]),
		Volume: numericField(fields[6]),
		High:   numericField(fields[8]),
		Low:    numericField(fields[9]),
	}
	return update, true
}

func numericField(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		dec, err := ParseAmount(v)
		if err != nil {
			return 0
		}
		f, _ := dec.Float64()
		return f
	default:
		return 0
	}
}
