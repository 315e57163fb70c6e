// Command listener subscribes to the Poloniex websocket ticker feed and
// publishes each update into the shared snapshot cache.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/tradeforge/poloniex-connector/config"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
	"github.com/tradeforge/poloniex-connector/internal/snapshot"
)

const loggerPrefix = "listener "

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to YAML configuration file (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg = config.FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	stdLogger := log.New(os.Stdout, loggerPrefix, log.LstdFlags|log.Lmicroseconds)
	observability.SetLogger(observability.NewStdLogger(stdLogger, cfg.Debug))
	logger := observability.Log()

	cache := snapshot.NewMemoryStore()
	stream, err := poloniex.NewTickerStream(poloniex.StreamOptions{
		URL:     cfg.Exchange.StreamURL,
		Logger:  logger,
		Handler: publishTicker(cache, logger),
	})
	if err != nil {
		return fmt.Errorf("construct ticker stream: %w", err)
	}

	logger.Info("listener started", observability.String("url", cfg.Exchange.StreamURL))
	if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ticker stream: %w", err)
	}
	logger.Info("listener stopped")
	return nil
}

// publishTicker stamps each update with the publish time and stores it under
// the canonical cache key for its market.
func publishTicker(cache snapshot.Store, logger observability.Logger) poloniex.StreamHandler {
	return func(ctx context.Context, update poloniex.TickerUpdate) {
		ticker := schema.NewTicker(poloniex.Exchange, update.Market,
			update.Bid, update.Ask, update.Last, update.High, update.Low, update.Volume,
			time.Now().UTC())

		payload, err := json.Marshal(ticker)
		if err != nil {
			logger.Warn("encode ticker", observability.String("market", update.Market), observability.Err(err))
			return
		}
		record := snapshot.Record{
			Key:     snapshot.Key{Exchange: poloniex.Exchange, Market: update.Market},
			Payload: payload,
		}
		if err := cache.Put(ctx, record); err != nil {
			logger.Warn("cache ticker", observability.String("market", update.Market), observability.Err(err))
		}
	}
}
