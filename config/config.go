// Package config centralises runtime configuration for connector binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment the connector operates in.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Credentials captures the API key pair used for private requests.
type Credentials struct {
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

// ExchangeSettings aggregates transport, credential, and trading
// configuration for the Poloniex integration.
type ExchangeSettings struct {
	PublicURL  string      `yaml:"publicUrl"`
	TradingURL string      `yaml:"tradingUrl"`
	StreamURL  string      `yaml:"streamUrl"`
	Creds      Credentials `yaml:"credentials"`
	// Account names the credential set; mirror rows are keyed by it.
	Account     string        `yaml:"account"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	// RateLimit caps outbound requests per second.
	RateLimit float64 `yaml:"rateLimit"`
	// FeeSide is the commodity trade fees are charged in: base or quote.
	FeeSide string `yaml:"feeSide"`
	// Markets lists the canonical markets the sync loops cover.
	Markets []string `yaml:"markets"`
}

// DatabaseSettings configures the PostgreSQL mirror.
type DatabaseSettings struct {
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrationsDir"`
}

// TelemetrySettings configures the OTLP metrics exporter. An empty endpoint
// disables export.
type TelemetrySettings struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// SyncSettings spaces the periodic synchronization loops.
type SyncSettings struct {
	TickerInterval  time.Duration `yaml:"tickerInterval"`
	BalanceInterval time.Duration `yaml:"balanceInterval"`
	OrderInterval   time.Duration `yaml:"orderInterval"`
	TradeInterval   time.Duration `yaml:"tradeInterval"`
	LedgerInterval  time.Duration `yaml:"ledgerInterval"`
	// HistoryPause seeds the adaptive sleep between history windows.
	HistoryPause time.Duration `yaml:"historyPause"`
}

// Settings is the configuration tree loaded from defaults, an optional yaml
// file, and environment overrides.
type Settings struct {
	Environment Environment       `yaml:"environment"`
	Exchange    ExchangeSettings  `yaml:"exchange"`
	Database    DatabaseSettings  `yaml:"database"`
	Telemetry   TelemetrySettings `yaml:"telemetry"`
	Sync        SyncSettings      `yaml:"sync"`
	Debug       bool              `yaml:"debug"`
}

// Default returns the default connector configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Exchange: ExchangeSettings{
			PublicURL:   "https://poloniex.com/public",
			TradingURL:  "https://poloniex.com/tradingApi",
			StreamURL:   "wss://api.poloniex.com",
			Account:     "primary",
			HTTPTimeout: 10 * time.Second,
			RateLimit:   6,
			FeeSide:     "quote",
			Markets:     []string{"BTC_USD"},
		},
		Database: DatabaseSettings{
			DSN:           "",
			MigrationsDir: "db/migrations",
		},
		Telemetry: TelemetrySettings{
			Endpoint: "",
			Service:  "poloniex-connector",
		},
		Sync: SyncSettings{
			TickerInterval:  15 * time.Second,
			BalanceInterval: time.Minute,
			OrderInterval:   30 * time.Second,
			TradeInterval:   5 * time.Minute,
			LedgerInterval:  15 * time.Minute,
			HistoryPause:    2 * time.Second,
		},
		Debug: false,
	}
}

// Load reads settings from a yaml file layered over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Settings, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies environment variable overrides on top of the given
// settings.
func FromEnv(cfg Settings) Settings {
	if v := strings.TrimSpace(os.Getenv("POLONIEX_ENV")); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_PUBLIC_URL")); v != "" {
		cfg.Exchange.PublicURL = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_TRADING_URL")); v != "" {
		cfg.Exchange.TradingURL = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_STREAM_URL")); v != "" {
		cfg.Exchange.StreamURL = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_API_KEY")); v != "" {
		cfg.Exchange.Creds.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_API_SECRET")); v != "" {
		cfg.Exchange.Creds.APISecret = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_ACCOUNT")); v != "" {
		cfg.Exchange.Account = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_HTTP_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Exchange.HTTPTimeout = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_RATE_LIMIT")); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil && limit > 0 {
			cfg.Exchange.RateLimit = limit
		}
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_MARKETS")); v != "" {
		var markets []string
		for _, market := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(market); trimmed != "" {
				markets = append(markets, trimmed)
			}
		}
		if len(markets) > 0 {
			cfg.Exchange.Markets = markets
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("POLONIEX_DEBUG")); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
	return cfg
}

// Validate rejects settings a binary cannot run with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Exchange.PublicURL) == "" {
		return fmt.Errorf("config: public url required")
	}
	if strings.TrimSpace(s.Exchange.TradingURL) == "" {
		return fmt.Errorf("config: trading url required")
	}
	if strings.TrimSpace(s.Exchange.Account) == "" {
		return fmt.Errorf("config: account required")
	}
	switch s.Exchange.FeeSide {
	case "", "base", "quote":
	default:
		return fmt.Errorf("config: unknown fee side %q", s.Exchange.FeeSide)
	}
	if s.Exchange.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative")
	}
	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"tickerInterval", s.Sync.TickerInterval},
		{"balanceInterval", s.Sync.BalanceInterval},
		{"orderInterval", s.Sync.OrderInterval},
		{"tradeInterval", s.Sync.TradeInterval},
		{"ledgerInterval", s.Sync.LedgerInterval},
		{"historyPause", s.Sync.HistoryPause},
	}
	for _, interval := range intervals {
		if interval.value <= 0 {
			return fmt.Errorf("config: sync %s must be positive, got %v", interval.name, interval.value)
		}
	}
	return nil
}
