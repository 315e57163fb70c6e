package poloniex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

func testGateway(t *testing.T, handler http.Handler) (*Gateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw := NewGateway(GatewayOptions{
		PublicURL:  srv.URL + "/public",
		TradingURL: srv.URL + "/tradingApi",
		Key:        "test-key",
		Secret:     "test-secret",
		RateLimit:  rate.Inf,
	})
	return gw, srv
}

func TestPublicAppendsCommandAndPair(t *testing.T) {
	var gotQuery url.Values
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"USDT_BTC":{"last":"1.0"}}`))
	}))

	params := url.Values{}
	params.Set("currencyPair", "USDT_BTC")
	body, err := gw.Public(context.Background(), "returnTicker", params)
	if err != nil {
		t.Fatalf("public request failed: %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("expected payload")
	}
	if gotQuery.Get("command") != "returnTicker" {
		t.Fatalf("missing command parameter: %v", gotQuery)
	}
	if gotQuery.Get("currencyPair") != "USDT_BTC" {
		t.Fatalf("missing currencyPair parameter: %v", gotQuery)
	}
}

func TestPublicTransportErrorIsNetworkEnvelope(t *testing.T) {
	gw := NewGateway(GatewayOptions{
		PublicURL: "http://127.0.0.1:1/public",
		RateLimit: rate.Inf,
		HTTPClient: &http.Client{
			Timeout: 100 * time.Millisecond,
		},
	})
	_, err := gw.Public(context.Background(), "returnTicker", nil)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if !errs.IsTransient(err) {
		t.Fatalf("transport failures must classify transient: %v", err)
	}
}

func TestPrivateSignsRequestBody(t *testing.T) {
	var gotSign, gotKey, gotBody string
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotSign = r.Header.Get("Sign")
		gotKey = r.Header.Get("Key")
		_, _ = w.Write([]byte(`{"orderNumber":"31226040"}`))
	}))

	params := url.Values{}
	params.Set("currencyPair", "USDT_BTC")
	body, err := gw.Private(context.Background(), "buy", params)
	if err != nil {
		t.Fatalf("private request failed: %v", err)
	}
	var ack OrderAck
	if err := json.Unmarshal(body, &ack); err != nil || ack.OrderNumber != "31226040" {
		t.Fatalf("unexpected ack payload: %s (%v)", body, err)
	}
	if gotKey != "test-key" {
		t.Fatalf("missing Key header")
	}
	mac := hmac.New(sha512.New, []byte("test-secret"))
	_, _ = mac.Write([]byte(gotBody))
	if want := hex.EncodeToString(mac.Sum(nil)); gotSign != want {
		t.Fatalf("signature mismatch: got %s want %s", gotSign, want)
	}
	form, err := url.ParseQuery(gotBody)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if form.Get("command") != "buy" || form.Get("nonce") == "" {
		t.Fatalf("form missing command or nonce: %v", form)
	}
}

func TestPrivateNoncesStrictlyIncrease(t *testing.T) {
	var nonces []int64
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		n, _ := strconv.ParseInt(r.PostForm.Get("nonce"), 10, 64)
		nonces = append(nonces, n)
		_, _ = w.Write([]byte(`{"success":1}`))
	}))
	// Freeze the clock so strict monotonicity comes from the bump, not time.
	frozen := time.Now()
	gw.clock = func() time.Time { return frozen }

	for i := 0; i < 5; i++ {
		if _, err := gw.Private(context.Background(), "cancelOrder", nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	for i := 1; i < len(nonces); i++ {
		if nonces[i] <= nonces[i-1] {
			t.Fatalf("nonces not strictly increasing: %v", nonces)
		}
	}
}

func TestPrivateRetriesNonceConflictThreeTimes(t *testing.T) {
	var calls int
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"error":"Invalid nonce parameter."}`))
	}))

	body, err := gw.Private(context.Background(), "returnOpenOrders", nil)
	if err != nil {
		t.Fatalf("exhausted retries must return the raw payload, got error: %v", err)
	}
	if calls != 1+maxNonceRetries {
		t.Fatalf("expected %d attempts, got %d", 1+maxNonceRetries, calls)
	}
	parsed := ParseError(body)
	if parsed == nil || !errs.IsNonceConflict(parsed) {
		t.Fatalf("expected nonce conflict payload passthrough, got %s", body)
	}
}

func TestPrivateNonceConflictRecovery(t *testing.T) {
	var calls int
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"error":"Invalid nonce parameter."}`))
			return
		}
		_, _ = w.Write([]byte(`{"orderNumber":"7"}`))
	}))

	body, err := gw.Private(context.Background(), "sell", nil)
	if err != nil {
		t.Fatalf("private request failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if parsed := ParseError(body); parsed != nil {
		t.Fatalf("expected success after retry, got %v", parsed)
	}
}

func TestParseErrorClassification(t *testing.T) {
	cases := []struct {
		body      string
		canonical errs.CanonicalCode
	}{
		{`{"error":"Invalid nonce parameter."}`, errs.CanonicalNonceConflict},
		{`{"error":"Nonce must be greater than 151."}`, errs.CanonicalNonceConflict},
		{`{"error":"Not enough BTC."}`, errs.CanonicalInsufficientBalance},
		{`{"error":"Invalid order number, or you are not the person who placed the order."}`, errs.CanonicalOrderNotFound},
		{`{"error":"Invalid currency pair."}`, errs.CanonicalInvalidSymbol},
		{`{"error":"Please do not make more than 6 API calls per second."}`, errs.CanonicalRateLimited},
	}
	for _, tc := range cases {
		err := ParseError([]byte(tc.body))
		if err == nil {
			t.Fatalf("expected error for %s", tc.body)
		}
		if tc.canonical != errs.CanonicalUnknown && err.Canonical != tc.canonical {
			t.Fatalf("body %s: canonical %s, want %s", tc.body, err.Canonical, tc.canonical)
		}
	}
}

func TestParseErrorSuccessShapes(t *testing.T) {
	for _, body := range []string{
		`{"orderNumber":"1"}`,
		`[{"globalTradeID":1}]`,
		`{"USDT_BTC":{"last":"1"}}`,
	} {
		if err := ParseError([]byte(body)); err != nil {
			t.Fatalf("success payload misclassified: %s -> %v", body, err)
		}
	}
	if err := ParseError(nil); err == nil {
		t.Fatalf("empty body must classify as exchange error")
	}
}
