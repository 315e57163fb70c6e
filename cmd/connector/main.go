// Command connector runs the Poloniex synchronization daemon: periodic
// ticker, balance, order, and history sync loops against a PostgreSQL mirror.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/tradeforge/poloniex-connector/config"
	"github.com/tradeforge/poloniex-connector/internal/connector"
	"github.com/tradeforge/poloniex-connector/internal/errs"
	"github.com/tradeforge/poloniex-connector/internal/infra/persistence/migrations"
	"github.com/tradeforge/poloniex-connector/internal/infra/persistence/postgres"
	"github.com/tradeforge/poloniex-connector/internal/observability"
	"github.com/tradeforge/poloniex-connector/internal/poloniex"
	"github.com/tradeforge/poloniex-connector/internal/schema"
	"github.com/tradeforge/poloniex-connector/internal/snapshot"
	"github.com/tradeforge/poloniex-connector/internal/telemetry"
)

const (
	loggerPrefix             = "connector "
	submitQueueCapacity      = 256
	poolName                 = "primary"
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath = flag.String("config", "", "Path to YAML configuration file (optional)")
		migrate = flag.Bool("migrate", false, "Apply pending database migrations before starting")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stdLogger := log.New(os.Stdout, loggerPrefix, log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadSettings(*cfgPath)
	if err != nil {
		return err
	}

	observability.SetLogger(observability.NewStdLogger(stdLogger, cfg.Debug))
	logger := observability.Log()
	logger.Info("configuration initialised",
		observability.String("env", string(cfg.Environment)),
		observability.String("account", cfg.Exchange.Account))

	_, shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.Service)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", observability.Err(err))
		}
	}()

	if *migrate {
		if err := migrations.Apply(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir, stdLogger); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	postgres.ObservePoolMetrics(pool, poolName)

	gateway := poloniex.NewGateway(poloniex.GatewayOptions{
		PublicURL:   cfg.Exchange.PublicURL,
		TradingURL:  cfg.Exchange.TradingURL,
		Key:         cfg.Exchange.Creds.APIKey,
		Secret:      cfg.Exchange.Creds.APISecret,
		HTTPTimeout: cfg.Exchange.HTTPTimeout,
		RateLimit:   rate.Limit(cfg.Exchange.RateLimit),
		Logger:      logger,
		Metrics:     telemetry.NewGatewayMetrics(poloniex.Exchange),
	})

	queue := connector.NewMemoryQueue(submitQueueCapacity)
	conn := connector.New(connector.Options{
		Gateway:      gateway,
		Mirror:       postgres.New(pool),
		Cache:        snapshot.NewMemoryStore(),
		Queue:        queue,
		Account:      cfg.Exchange.Account,
		FeeSide:      schema.FeeSide(cfg.Exchange.FeeSide),
		HistoryPause: cfg.Sync.HistoryPause,
		Logger:       logger,
		Metrics:      telemetry.NewSyncMetrics(),
	})

	var lifecycle conc.WaitGroup
	startSyncLoops(ctx, &lifecycle, conn, queue, cfg, logger)
	logger.Info("connector started; awaiting shutdown signal")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	queue.Close()
	lifecycle.Wait()
	logger.Info("connector stopped")
	return nil
}

func loadSettings(path string) (config.Settings, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Settings{}, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg = config.FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func startSyncLoops(ctx context.Context, lifecycle *conc.WaitGroup, conn *connector.Connector, queue *connector.MemoryQueue, cfg config.Settings, logger observability.Logger) {
	for _, market := range cfg.Exchange.Markets {
		runEvery(ctx, lifecycle, "ticker "+market, cfg.Sync.TickerInterval, logger, func(ctx context.Context) error {
			_, err := conn.SyncTicker(ctx, market)
			return err
		})
	}

	runEvery(ctx, lifecycle, "balances", cfg.Sync.BalanceInterval, logger, conn.SyncBalances)
	runEvery(ctx, lifecycle, "orders", cfg.Sync.OrderInterval, logger, conn.SyncOrders)
	runEvery(ctx, lifecycle, "trades", cfg.Sync.TradeInterval, logger, func(ctx context.Context) error {
		return conn.SyncTrades(ctx, "", false)
	})
	runEvery(ctx, lifecycle, "credits", cfg.Sync.LedgerInterval, logger, func(ctx context.Context) error {
		return conn.SyncCredits(ctx, false)
	})
	runEvery(ctx, lifecycle, "debits", cfg.Sync.LedgerInterval, logger, func(ctx context.Context) error {
		return conn.SyncDebits(ctx, false)
	})

	lifecycle.Go(func() {
		drainSubmitQueue(ctx, conn, queue, logger)
	})
}

// runEvery executes fn immediately, then on every tick until the context is
// cancelled. Failures are logged and the loop keeps going.
func runEvery(ctx context.Context, lifecycle *conc.WaitGroup, name string, interval time.Duration, logger observability.Logger, fn func(context.Context) error) {
	lifecycle.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				fields := []observability.Field{
					observability.String("loop", name),
					observability.Err(err),
				}
				if errs.IsTransient(err) {
					logger.Warn("sync pass failed, will retry next tick", fields...)
				} else {
					logger.Error("sync pass failed", fields...)
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

func drainSubmitQueue(ctx context.Context, conn *connector.Connector, queue *connector.MemoryQueue, logger observability.Logger) {
	for {
		sub, err := queue.Next(ctx)
		if err != nil {
			return
		}
		if _, err := conn.CreateOrder(ctx, sub.LocalID, sub.ExpireAt); err != nil {
			logger.Warn("queued order submission failed",
				observability.String("local_id", sub.LocalID),
				observability.Err(err))
		}
	}
}
