package poloniex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/telemetry"
)

const (
	// DefaultPublicURL serves unauthenticated market data requests.
	DefaultPublicURL = "https://poloniex.com/public"
	// DefaultTradingURL serves authenticated account requests.
	DefaultTradingURL = "https://poloniex.com/tradingApi"

	defaultHTTPTimeout = 10 * time.Second
	defaultRateLimit   = rate.Limit(6) // documented public limit, req/s
	maxNonceRetries    = 3
)

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	PublicURL   string
	TradingURL  string
	Key         string
	Secret      string
	HTTPTimeout time.Duration
	RateLimit   rate.Limit
	Burst       int
	HTTPClient  *http.Client
	Clock       func() time.Time
	Logger      observability.Logger
	Metrics     *telemetry.GatewayMetrics
}

// Gateway signs and submits public and private requests against the exchange
// REST API. Nonces are strictly increasing per credential set across all
// goroutines sharing the Gateway; conflicts caused by other processes holding
// the same credential are absorbed by a bounded in-process retry.
type Gateway struct {
	publicURL  string
	tradingURL string
	key        string
	secret     []byte
	client     *http.Client
	limiter    *rate.Limiter
	clock      func() time.Time
	log        observability.Logger
	metrics    *telemetry.GatewayMetrics

	nonceMu   sync.Mutex
	lastNonce int64
}

// NewGateway constructs a Gateway with defaults filled in.
func NewGateway(opts GatewayOptions) *Gateway {
	if opts.PublicURL == "" {
		opts.PublicURL = DefaultPublicURL
	}
	if opts.TradingURL == "" {
		opts.TradingURL = DefaultTradingURL
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = defaultHTTPTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.RateLimit)
		if opts.Burst < 1 {
			opts.Burst = 1
		}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.HTTPTimeout}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Log()
	}
	return &Gateway{
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		tradingURL: strings.TrimRight(opts.TradingURL, "/"),
		key:        opts.Key,
		secret:     []byte(opts.Secret),
		client:     client,
		limiter:    rate.NewLimiter(opts.RateLimit, opts.Burst),
		clock:      clock,
		log:        logger,
		metrics:    opts.Metrics,
	}
}

// Public issues an unauthenticated GET for the given command. Transport
// failures come back as network error envelopes; callers treat the absence of
// a payload as "try again later", not as a hard failure.
func (g *Gateway) Public(ctx context.Context, command string, params url.Values) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway rate limit: %w", err)
	}
	query := url.Values{}
	query.Set("command", command)
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	endpoint := g.publicURL + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build public request: %w", err)
	}
	body, err := g.do(req, "public")
	if err != nil {
		g.log.Warn("public request failed",
			observability.String("command", command), observability.Err(err))
		return nil, err
	}
	return body, nil
}

// Private issues a signed POST for the given command. The request body
// carries a fresh strictly-increasing nonce; "Invalid nonce" answers are
// retried up to three times with a new nonce, after which the raw error
// payload is returned as-is for the caller to interpret.
func (g *Gateway) Private(ctx context.Context, command string, params url.Values) ([]byte, error) {
	var body []byte
	for attempt := 0; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gateway rate limit: %w", err)
		}
		form := url.Values{}
		for key, values := range params {
			for _, value := range values {
				form.Add(key, value)
			}
		}
		form.Set("command", command)
		form.Set("nonce", strconv.FormatInt(g.nextNonce(), 10))
		payload := form.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tradingURL, strings.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build private request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Key", g.key)
		req.Header.Set("Sign", g.sign(payload))

		body, err = g.do(req, "private")
		if err != nil {
			g.log.Warn("private request failed",
				observability.String("command", command), observability.Err(err))
			return nil, err
		}
		exchangeErr := ParseError(body)
		if exchangeErr == nil || !errs.IsNonceConflict(exchangeErr) || attempt >= maxNonceRetries {
			return body, nil
		}
		g.metrics.RecordNonceRetry(ctx)
		g.log.Debug("nonce conflict, retrying",
			observability.String("command", command),
			observability.Field{Key: "attempt", Value: attempt + 1})
	}
}

func (g *Gateway) do(req *http.Request, surface string) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.RecordRequest(req.Context(), surface, "transport_error")
		canonical := errs.CanonicalUnknown
		if errs.IsTimeout(err) {
			canonical = errs.CanonicalTimeout
		}
		return nil, errs.New(Exchange, errs.CodeNetwork,
			errs.WithMessage(surface+" request failed"),
			errs.WithCanonicalCode(canonical),
			errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.metrics.RecordRequest(req.Context(), surface, "read_error")
		return nil, errs.New(Exchange, errs.CodeNetwork,
			errs.WithMessage("read response body"), errs.WithCause(err))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		g.metrics.RecordRequest(req.Context(), surface, "server_error")
		return nil, errs.New(Exchange, errs.CodeNetwork,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage("exchange unavailable"),
			errs.WithRawMessage(strings.TrimSpace(string(body))))
	}
	g.metrics.RecordRequest(req.Context(), surface, "ok")
	return body, nil
}

// nextNonce returns a millisecond timestamp bumped past the previous value so
// concurrent callers within this process never collide.
func (g *Gateway) nextNonce() int64 {
	g.nonceMu.Lock()
	defer g.nonceMu.Unlock()
	nonce := g.clock().UnixMilli()
	if nonce <= g.lastNonce {
		nonce = g.lastNonce + 1
	}
	g.lastNonce = nonce
	return nonce
}

func (g *Gateway) sign(payload string) string {
	mac := hmac.New(sha512.New, g.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
