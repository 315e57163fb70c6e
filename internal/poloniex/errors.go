package poloniex

import (
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

type errorPayload struct {
	Error string `json:"error"`
}

// ParseError inspects a trading-API response body and returns a classified
// error envelope when the body carries an exchange-reported error, or nil for
// a success payload. Non-JSON bodies are treated as exchange errors: the
// private API always answers JSON on success.
func ParseError(body []byte) *errs.E {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return errs.New(Exchange, errs.CodeExchange, errs.WithMessage("empty response body"))
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Arrays and primitive payloads fail object decoding; those are
		// success responses for list-shaped endpoints.
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
			return nil
		}
		return errs.New(Exchange, errs.CodeExchange,
			errs.WithMessage("undecodable response body"), errs.WithCause(err))
	}
	if payload.Error == "" {
		return nil
	}
	return classify(payload.Error)
}

func classify(raw string) *errs.E {
	msg := strings.ToLower(raw)
	opts := []errs.Option{errs.WithRawMessage(raw)}
	switch {
	case strings.Contains(msg, "invalid nonce") || strings.Contains(msg, "nonce must be greater"):
		opts = append(opts, errs.WithCanonicalCode(errs.CanonicalNonceConflict))
		return errs.New(Exchange, errs.CodeConflict, opts...)
	case strings.Contains(msg, "not enough"):
		opts = append(opts, errs.WithCanonicalCode(errs.CanonicalInsufficientBalance))
		return errs.New(Exchange, errs.CodeExchange, opts...)
	case strings.Contains(msg, "invalid order"), strings.Contains(msg, "order not found"):
		opts = append(opts, errs.WithCanonicalCode(errs.CanonicalOrderNotFound))
		return errs.New(Exchange, errs.CodeExchange, opts...)
	case strings.Contains(msg, "invalid currency"):
		opts = append(opts, errs.WithCanonicalCode(errs.CanonicalInvalidSymbol))
		return errs.New(Exchange, errs.CodeInvalid, opts...)
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "api calls per second"):
		opts = append(opts, errs.WithCanonicalCode(errs.CanonicalRateLimited))
		return errs.New(Exchange, errs.CodeRateLimited, opts...)
	default:
		return errs.New(Exchange, errs.CodeExchange, opts...)
	}
}
